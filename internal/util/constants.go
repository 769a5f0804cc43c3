package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 录音上传相关常量
const (
	MimeAudio       = "audio/"
	MimeWav         = "audio/wav"
	MimeOctetStream = "application/octet-stream"

	MaxAudioUploadBytes = 20 << 20 // 单段录音上限 20MB
)

var (
	AllowedAudioExtensions = []string{".wav", ".webm", ".ogg", ".mp3", ".m4a", ".flac"}
)
