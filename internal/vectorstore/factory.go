package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/reporover/internal/config"
	"go.uber.org/zap"
)

// NewStore creates the Store selected by cfg.Provider:
//   - "chromem" (default): embedded, persisted under cfg.Path
//   - "qdrant": external Qdrant server over gRPC
func NewStore(cfg config.VectorStoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.Path,
			Compress:   cfg.Compress,
			Collection: cfg.Collection,
		}, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			Collection: cfg.Collection,
			UseTLS:     cfg.QdrantTLS,
			APIKey:     cfg.QdrantKey.Value(),
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider: %s (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Provider)
	}
}
