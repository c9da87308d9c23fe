package config

type StorageConfig interface {
	GetDatabaseURL() string
	GetS3Bucket() string
	GetS3Region() string
	GetS3Endpoint() string
	GetS3AccessKey() string
	GetS3SecretKey() string
	GetS3PublicURL() string
	GetS3UsePathStyle() bool
	GetMaxUploadBytes() int64
}

// Storage configures the relational store and object storage. An empty
// DATABASE_URL or S3_BUCKET selects the in-memory implementation.
type Storage struct {
	DatabaseURL    string `env:"DATABASE_URL"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `env:"S3_REGION"         envDefault:"us-east-1"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3PublicURL    string `env:"S3_PUBLIC_URL"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`
	MaxUploadMB    int64  `env:"MAX_UPLOAD_MB"     envDefault:"25"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetDatabaseURL() string {
	return s.DatabaseURL
}

func (s Storage) GetS3Bucket() string {
	return s.S3Bucket
}

func (s Storage) GetS3Region() string {
	return s.S3Region
}

func (s Storage) GetS3Endpoint() string {
	return s.S3Endpoint
}

func (s Storage) GetS3AccessKey() string {
	return s.S3AccessKey
}

func (s Storage) GetS3SecretKey() string {
	return s.S3SecretKey
}

func (s Storage) GetS3PublicURL() string {
	return s.S3PublicURL
}

func (s Storage) GetS3UsePathStyle() bool {
	return s.S3UsePathStyle
}

// GetMaxUploadBytes bounds the multipart body of a new listing.
func (s Storage) GetMaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}
