package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/loomchat/attachment-backend/pkg/types"
)

const (
	// ToolResourceLinkTableName is the table name for tool resource links
	ToolResourceLinkTableName = "tool_resource_link"
)

// ToolResourceLink defines the methods for the tool_resource_link table.
// A link makes a file visible to an agent through one of its tool resource
// buckets (file search, code execution, image, context).
type ToolResourceLink interface {
	// CreateToolResourceLinks inserts the links for a file in a single batch.
	CreateToolResourceLinks(ctx context.Context, links []ToolResourceLinkModel) ([]ToolResourceLinkModel, error)
	// GetToolResourceLinksByFileUIDs returns the links for a batch of files.
	GetToolResourceLinksByFileUIDs(ctx context.Context, fileUIDs []types.FileUIDType) ([]ToolResourceLinkModel, error)
	// DeleteToolResourceLinksByFileUIDs removes all links for a batch of
	// files and returns the number of links removed.
	DeleteToolResourceLinksByFileUIDs(ctx context.Context, fileUIDs []types.FileUIDType) (int64, error)
}

// ToolResourceLinkModel is the model for the tool_resource_link table.
type ToolResourceLinkModel struct {
	UID          types.FileUIDType  `gorm:"column:uid;type:uuid;default:uuid_generate_v4();primaryKey" json:"uid"`
	FileUID      types.FileUIDType  `gorm:"column:file_uid;type:uuid;not null" json:"file_uid"`
	AgentUID     types.AgentUIDType `gorm:"column:agent_uid;type:uuid;not null" json:"agent_uid"`
	ToolResource types.ToolResource `gorm:"column:tool_resource;size:50;not null" json:"tool_resource"`
	CreateTime   *time.Time         `gorm:"column:create_time;not null;default:CURRENT_TIMESTAMP" json:"create_time"`
}

// TableName overrides the default table name for GORM
func (ToolResourceLinkModel) TableName() string {
	return ToolResourceLinkTableName
}

// ToolResourceLinkColumns is the columns for the tool_resource_link table
type ToolResourceLinkColumns struct {
	UID          string
	FileUID      string
	AgentUID     string
	ToolResource string
	CreateTime   string
}

// ToolResourceLinkColumn is the columns for the tool_resource_link table
var ToolResourceLinkColumn = ToolResourceLinkColumns{
	UID:          "uid",
	FileUID:      "file_uid",
	AgentUID:     "agent_uid",
	ToolResource: "tool_resource",
	CreateTime:   "create_time",
}

func (r *repository) CreateToolResourceLinks(ctx context.Context, links []ToolResourceLinkModel) ([]ToolResourceLinkModel, error) {
	if len(links) == 0 {
		return links, nil
	}
	if err := r.db.WithContext(ctx).Create(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *repository) GetToolResourceLinksByFileUIDs(ctx context.Context, fileUIDs []types.FileUIDType) ([]ToolResourceLinkModel, error) {
	var stringUIDs []string
	for _, uid := range fileUIDs {
		stringUIDs = append(stringUIDs, uid.String())
	}

	var links []ToolResourceLinkModel
	whereClause := fmt.Sprintf("%v IN ?", ToolResourceLinkColumn.FileUID)
	if err := r.db.WithContext(ctx).Where(whereClause, stringUIDs).Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *repository) DeleteToolResourceLinksByFileUIDs(ctx context.Context, fileUIDs []types.FileUIDType) (int64, error) {
	var stringUIDs []string
	for _, uid := range fileUIDs {
		stringUIDs = append(stringUIDs, uid.String())
	}

	result := r.db.WithContext(ctx).
		Where(ToolResourceLinkColumn.FileUID+" IN ?", stringUIDs).
		Delete(&ToolResourceLinkModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
