package cloudwriter

// CloudWriter buffers event-archive bytes and flushes them to object storage
// on Close.
type CloudWriter interface {
	Write(data []byte) (int, error)
	Close() error
}

type CloudWriterFactory interface {
	NewWriter(bucket, objectPath string) (CloudWriter, error)
}
