package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageDisabled = "disabled"
	StorageLocal    = "local"
	StorageMinio    = "minio"
)

// 监考快照上传相关常量
const (
	SnapshotKindScreen = "screen"
	SnapshotKindWebcam = "webcam"

	MaxSnapshotBytes = 5 << 20
)

var AllowedSnapshotContentTypes = []string{"image/png", "image/jpeg", "image/webp"}
