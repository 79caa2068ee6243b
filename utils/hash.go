package utils

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"strings"
)

// FileMD5 计算上传文件MD5，作为提取结果的缓存键
func FileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return readerMD5(file)
}

func readerMD5(r io.Reader) (string, error) {
	hash := md5.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// CacheKey 由文件MD5与处理参数拼接缓存键，例如 md5:plain:12
func CacheKey(md5 string, params ...string) string {
	return strings.Join(append([]string{md5}, params...), ":")
}
