package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
)

// Skip markers fill the gremlin id column for rows that will never reach the
// target store, so neither this run nor a resumed one retries them forever.
const (
	skipMarkerPrefix    = "skipped:"
	skipMissingEndpoint = skipMarkerPrefix + "missing-endpoint"
	skipWriteFailed     = skipMarkerPrefix + "write-failed"
)

// gremlinExportDriver walks one export run through its phases: write every
// snapshotted node, write every edge, clean up. Progress is the shadow rows
// themselves, so a driver can die at any point and a successor resumes
// exactly where it stopped.
type gremlinExportDriver struct {
	svc    *exportService
	export *models.Export
	logger *zap.Logger
}

func newGremlinExportDriver(svc *exportService, export *models.Export) *gremlinExportDriver {
	return &gremlinExportDriver{
		svc:    svc,
		export: export,
		logger: svc.logger.Named("gremlin-driver").With(zap.String("export_id", export.ID.String())),
	}
}

func (d *gremlinExportDriver) run(ctx context.Context) {
	cfg, err := d.svc.decryptConfig(d.export)
	if err != nil {
		d.fail(err)
		return
	}

	writer, err := d.svc.newWriter(ctx, cfg)
	if err != nil {
		d.fail(fmt.Errorf("failed to connect to export target: %w", err))
		return
	}
	defer writer.Close()

	limiter := rate.NewLimiter(rate.Limit(cfg.WritesPerSecond), cfg.WritesPerSecond)

	if done, err := d.writeNodes(ctx, writer, limiter, cfg.BatchSize); err != nil {
		d.fail(err)
		return
	} else if !done {
		return
	}

	if done, err := d.writeEdges(ctx, writer, limiter, cfg.BatchSize); err != nil {
		d.fail(err)
		return
	} else if !done {
		return
	}

	d.complete(ctx)
}

// writeNodes drains unwritten node rows batch by batch. Returns false when
// the run should stand down without failing: cancellation, or someone moved
// the export out of processing.
func (d *gremlinExportDriver) writeNodes(ctx context.Context, writer GraphWriter, limiter *rate.Limiter, batchSize int) (bool, error) {
	for {
		if !d.stillProcessing(ctx) {
			return false, nil
		}

		tx, err := d.svc.db.Begin(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to begin transaction: %w", err)
		}

		nodes, err := d.svc.shadow.ListUnassociatedNodesAndLock(ctx, tx, d.export.ID, batchSize, false)
		if err != nil {
			tx.Rollback(ctx) //nolint:errcheck
			return false, err
		}
		if len(nodes) == 0 {
			tx.Rollback(ctx) //nolint:errcheck
			return true, nil
		}

		for _, node := range nodes {
			if err := limiter.Wait(ctx); err != nil {
				tx.Rollback(ctx) //nolint:errcheck
				return false, nil
			}

			gremlinID, err := writer.AddVertex(ctx, node.MetatypeName, vertexProperties(node))
			if err != nil {
				// Mark the rejected row so it stops being reselected; the
				// run continues without it.
				d.logger.Warn("Skipping node the target store rejected",
					zap.String("node_id", node.ID.String()),
					zap.Error(err))
				gremlinID = skipWriteFailed
			}

			if err := d.svc.shadow.SetGremlinNodeID(ctx, tx, d.export.ID, node.ID, gremlinID); err != nil {
				tx.Rollback(ctx) //nolint:errcheck
				return false, err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("failed to commit transaction: %w", err)
		}
	}
}

func (d *gremlinExportDriver) writeEdges(ctx context.Context, writer GraphWriter, limiter *rate.Limiter, batchSize int) (bool, error) {
	for {
		if !d.stillProcessing(ctx) {
			return false, nil
		}

		tx, err := d.svc.db.Begin(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to begin transaction: %w", err)
		}

		edges, err := d.svc.shadow.ListUnassociatedEdgesAndLock(ctx, tx, d.export.ID, batchSize, false)
		if err != nil {
			tx.Rollback(ctx) //nolint:errcheck
			return false, err
		}
		if len(edges) == 0 {
			tx.Rollback(ctx) //nolint:errcheck
			return true, nil
		}

		for _, edge := range edges {
			originID, destinationID, err := d.endpointIDs(ctx, edge)
			if err != nil {
				tx.Rollback(ctx) //nolint:errcheck
				return false, err
			}
			if originID == "" || destinationID == "" {
				d.logger.Warn("Skipping edge with unexported endpoint",
					zap.String("edge_id", edge.ID.String()))
				if err := d.svc.shadow.SetGremlinEdgeID(ctx, tx, d.export.ID, edge.ID, skipMissingEndpoint); err != nil {
					tx.Rollback(ctx) //nolint:errcheck
					return false, err
				}
				continue
			}

			if err := limiter.Wait(ctx); err != nil {
				tx.Rollback(ctx) //nolint:errcheck
				return false, nil
			}

			gremlinID, err := writer.AddEdge(ctx, originID, destinationID, edge.RelationshipName, edge.Properties)
			if err != nil {
				d.logger.Warn("Skipping edge the target store rejected",
					zap.String("edge_id", edge.ID.String()),
					zap.Error(err))
				gremlinID = skipWriteFailed
			}

			if err := d.svc.shadow.SetGremlinEdgeID(ctx, tx, d.export.ID, edge.ID, gremlinID); err != nil {
				tx.Rollback(ctx) //nolint:errcheck
				return false, err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("failed to commit transaction: %w", err)
		}
	}
}

// endpointIDs resolves an edge's endpoints to the vertex ids the target store
// assigned during the node phase. Empty ids mean the endpoint never made it
// into the target store.
func (d *gremlinExportDriver) endpointIDs(ctx context.Context, edge *models.GremlinEdge) (string, string, error) {
	origin, err := d.svc.shadow.RetrieveNode(ctx, d.export.ID, edge.OriginNodeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", "", nil
		}
		return "", "", err
	}

	destination, err := d.svc.shadow.RetrieveNode(ctx, d.export.ID, edge.DestinationNodeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", "", nil
		}
		return "", "", err
	}

	return vertexID(origin), vertexID(destination), nil
}

// vertexID yields the target-store id a shadow node resolved to, or "" when
// the node was never written or was skipped.
func vertexID(node *models.GremlinNode) string {
	if node.GremlinNodeID == nil || strings.HasPrefix(*node.GremlinNodeID, skipMarkerPrefix) {
		return ""
	}
	return *node.GremlinNodeID
}

// stillProcessing re-reads the export's status between batches. The status
// column is the cross-instance stop signal; context cancellation is the local
// one.
func (d *gremlinExportDriver) stillProcessing(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	export, err := d.svc.exports.Retrieve(ctx, d.export.ID)
	if err != nil {
		d.logger.Warn("Failed to re-check export status", zap.Error(err))
		return false
	}

	return export.Status == models.ExportProcessing
}

func (d *gremlinExportDriver) complete(ctx context.Context) {
	// Use a fresh context: the run context may already be cancelled by an
	// instance shutdown racing completion.
	finishCtx := context.WithoutCancel(ctx)

	if err := d.svc.shadow.DeleteForExport(finishCtx, d.export.ID); err != nil {
		d.logger.Error("Failed to clean up shadow rows", zap.Error(err))
	}

	if err := d.svc.exports.SetStatus(finishCtx, d.export.ID, models.ExportCompleted, nil); err != nil {
		d.logger.Error("Failed to mark export completed", zap.Error(err))
		return
	}

	d.logger.Info("Export completed")

	if d.svc.emitter != nil {
		err := d.svc.emitter.Emit(finishCtx, models.Event{
			Type:       models.EventDataExported,
			SourceID:   d.export.ContainerID,
			SourceType: models.SourceContainer,
			Data:       mustJSON(map[string]any{"export_id": d.export.ID.String()}),
		})
		if err != nil {
			d.logger.Warn("Failed to queue data_exported event", zap.Error(err))
		}
	}
}

func (d *gremlinExportDriver) fail(err error) {
	d.logger.Error("Export failed", zap.Error(err))

	message := err.Error()
	if setErr := d.svc.exports.SetStatus(context.Background(), d.export.ID, models.ExportFailed, &message); setErr != nil {
		d.logger.Error("Failed to mark export failed", zap.Error(setErr))
	}
}

// vertexProperties augments a node's properties with identifying keys so
// exported vertices can be traced back to their source rows.
func vertexProperties(node *models.GremlinNode) map[string]any {
	props := make(map[string]any, len(node.Properties)+2)
	for k, v := range node.Properties {
		props[k] = v
	}
	props["_record_id"] = node.ID.String()
	props["_container_id"] = node.ContainerID.String()
	return props
}
