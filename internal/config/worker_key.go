package config

type WorkerKeyStruct struct {
	IngestDocumentsQueue string
	VectorCleanupQueue   string
}

var WorkerKey = &WorkerKeyStruct{
	IngestDocumentsQueue: "ingest_documents_queue",
	VectorCleanupQueue:   "vector_cleanup_queue",
}
