package utils

type FgetJob struct {
	ID               string
	URL              string
	OutputPath       string
	Dir              string
	Connections      int
	ChunkCount       int
	Retries          int
	RateLimit        int64
	VersionTag       string
	HTTPClientConfig HTTPClientConfig
}

type DownloadEntry struct {
	OutputPath string `yaml:"op"`
	URL        string `yaml:"link"`
}
