// Package mocks provides mock implementations for testing the dispatch engine.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the repository
// and port interfaces. The mocks are generated using go:generate directives.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().ClaimNext(gomock.Any(), "default").Return(job, nil)
package mocks

// Job store: Enqueue, ClaimNext, Complete, DeleteRange, GetByID, GetForTenant, List, Count, CountStuck
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/target/integrations-dispatch/internal/core JobRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=deployment_repository_mock.go github.com/target/integrations-dispatch/internal/core DeploymentRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=integration_repository_mock.go github.com/target/integrations-dispatch/internal/core IntegrationRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=violation_repository_mock.go github.com/target/integrations-dispatch/internal/core ViolationRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=deployment_job_lister_mock.go github.com/target/integrations-dispatch/internal/core DeploymentJobLister

// Ports consumed by the scheduler and worker loops.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=dispatch_client_mock.go github.com/target/integrations-dispatch/internal/ports DispatchClient
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=execution_provider_mock.go github.com/target/integrations-dispatch/internal/ports ExecutionProvider
