package contracts

import (
	"context"

	"github.com/meysamhadeli/doctreeai/providers/models"
)

// ISummaryProvider is the external compute step. Errors are classified with
// models.TransientError and models.FatalError.
type ISummaryProvider interface {
	Summarize(ctx context.Context, request models.SummaryRequest) (*models.SummaryResponse, error)
	Name() string
	ModelName() string
}
