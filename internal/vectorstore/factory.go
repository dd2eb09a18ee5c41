package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/agentforge/agentd/internal/config"
)

// NewStore builds the Store selected by cfg.Provider. The embedder supplies
// vectors for both backends; dimension is the embedder's output size, used
// when the qdrant backend creates collections.
func NewStore(cfg config.VectorConfig, embedder Embedder, dimension int, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case "", "chromem":
		return NewChromemStore(ChromemConfig{
			Path:     cfg.Path,
			Compress: cfg.Compress,
		}, embedder, logger)
	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       cfg.Host,
			Port:       cfg.Port,
			VectorSize: dimension,
		}, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unknown vector provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
