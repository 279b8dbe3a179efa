// Package file provides a filesystem-backed flow repository, intended for
// development setups and seeding. Flow definitions are JSON files validated
// against a schema before decoding. Window state still lives in memory; the
// filesystem cannot give the cross-process atomic merge windows require.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/floworc/floworc/pkg/models"
	"github.com/floworc/floworc/pkg/persistence"
	"github.com/floworc/floworc/pkg/persistence/memory"
)

// Persistence implements the storage contracts with flows on disk and
// windows in memory.
type Persistence struct {
	root    string
	logger  *slog.Logger
	schema  *gojsonschema.Schema
	windows *memory.Persistence
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string, logger *slog.Logger) (*Persistence, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(flowSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile flow schema: %w", err)
	}

	err = os.MkdirAll(root, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow directory: %w", err)
	}

	return &Persistence{
		root:    root,
		logger:  logger.With("module", "file_persistence"),
		schema:  schema,
		windows: memory.NewPersistence(),
	}, nil
}

func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p
}

func (p *Persistence) WindowRepository() persistence.WindowRepository {
	return p.windows.WindowRepository()
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	info, err := os.Stat(p.root)
	if err != nil {
		return fmt.Errorf("flow directory unavailable: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("flow path %s is not a directory", p.root)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// Flows loads every flow definition file of the tenant.
func (p *Persistence) Flows(ctx context.Context, tenantID string) ([]*models.Flow, error) {
	flows := make([]*models.Flow, 0)

	err := filepath.WalkDir(p.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			return nil
		}

		flow, err := p.loadFlow(path)
		if err != nil {
			p.logger.WarnContext(ctx, "skipping invalid flow definition", "path", path, "error", err)

			return nil
		}

		if flow.TenantID == tenantID {
			flows = append(flows, flow)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk flow directory: %w", err)
	}

	return flows, nil
}

// FlowByID loads one flow definition by identity.
func (p *Persistence) FlowByID(_ context.Context, tenantID, namespace, id string) (*models.Flow, error) {
	flow, err := p.loadFlow(p.flowPath(tenantID, namespace, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewFlowError("FlowByID", namespace, id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("FlowByID", namespace, id, err)
	}

	return flow, nil
}

// SaveFlow writes the flow definition file.
func (p *Persistence) SaveFlow(_ context.Context, flow *models.Flow) error {
	if err := models.Validate(flow); err != nil {
		return persistence.NewFlowError("SaveFlow", flow.Namespace, flow.ID, err)
	}

	payload, err := json.MarshalIndent(flow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}

	path := p.flowPath(flow.TenantID, flow.Namespace, flow.ID)

	err = os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create flow directory: %w", err)
	}

	err = os.WriteFile(path, payload, 0o644)
	if err != nil {
		return persistence.NewFlowError("SaveFlow", flow.Namespace, flow.ID, err)
	}

	return nil
}

// DeleteFlow removes the flow definition file.
func (p *Persistence) DeleteFlow(_ context.Context, tenantID, namespace, id string) error {
	err := os.Remove(p.flowPath(tenantID, namespace, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewFlowError("DeleteFlow", namespace, id, persistence.ErrFlowNotFound)
		}

		return persistence.NewFlowError("DeleteFlow", namespace, id, err)
	}

	return nil
}

func (p *Persistence) flowPath(tenantID, namespace, id string) string {
	tenant := tenantID
	if tenant == "" {
		tenant = "default"
	}

	return filepath.Join(p.root, tenant, namespace, id+".json")
}

func (p *Persistence) loadFlow(path string) (*models.Flow, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	result, err := p.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to validate flow definition: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return nil, fmt.Errorf("invalid flow definition: %s", strings.Join(descriptions, "; "))
	}

	var flow models.Flow
	if err := json.Unmarshal(payload, &flow); err != nil {
		return nil, fmt.Errorf("failed to decode flow definition: %w", err)
	}

	return &flow, nil
}
