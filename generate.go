package pbpe

// Generate documentation for the root package.
//go:generate gomarkdoc -o README.md -e . --embed --repository.url https://github.com/agentstation/pbpe --repository.default-branch master --repository.path /

// Generate documentation for the CLI package.
//go:generate gomarkdoc -o ./cmd/pbpe/README.md -e ./cmd/pbpe --embed --repository.url https://github.com/agentstation/pbpe --repository.default-branch master --repository.path /cmd/pbpe
