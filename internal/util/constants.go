package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 截图归档相关常量
const (
	MimePNG         = "image/png"
	MimeJSON        = "application/json"
	MimeOctetStream = "application/octet-stream"
)
