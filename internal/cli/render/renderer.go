package render

import "github.com/ethertulip/tulip-deployer/internal/usecase"

// Renderer writes a use case result to the terminal
type Renderer[T any] interface {
	Render(result T) error
}

var (
	_ Renderer[*usecase.DeployResult]       = (*DeployRenderer)(nil)
	_ Renderer[*usecase.ManageDevnetResult] = (*DevnetRenderer)(nil)
	_ Renderer[*usecase.ShowManifestResult] = (*ManifestRenderer)(nil)
	_ Renderer[*usecase.ValidatePlanResult] = (*PlanRenderer)(nil)
)
