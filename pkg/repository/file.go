package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/types"
)

const (
	// FileTableName is the table name for files
	FileTableName = "file"
)

// File defines the methods for the file table.
type File interface {
	// CreateFile persists a new file record. The strategy-status map must be
	// populated before the call via SetStrategiesMap.
	CreateFile(ctx context.Context, file FileModel) (*FileModel, error)
	// GetFilesByFileUIDs returns the non-deleted files by file UIDs.
	GetFilesByFileUIDs(ctx context.Context, fileUIDs []types.FileUIDType, columns ...string) ([]FileModel, error)
	// GetFilesByFileUIDsIncludingDeleted returns files by UIDs, including
	// soft-deleted files. Cleanup activities run against files that were
	// soft-deleted at workflow start.
	GetFilesByFileUIDsIncludingDeleted(ctx context.Context, fileUIDs []types.FileUIDType, columns ...string) ([]FileModel, error)
	// ListFiles returns a page of non-deleted files owned by an entity.
	ListFiles(ctx context.Context, params ListFilesParams) (*FileList, error)
	// UpdateFile updates the data and retrieves the latest data.
	UpdateFile(ctx context.Context, fileUID types.FileUIDType, updateMap map[string]any) (*FileModel, error)
	// UpdateFileUsage increments the usage counter of a file.
	UpdateFileUsage(ctx context.Context, fileUID types.FileUIDType) error
	// SetStrategyStatus advances a single strategy's StatusRecord in the
	// file's strategy matrix, together with any transition metadata. Unknown
	// file UIDs return ErrNotFound.
	SetStrategyStatus(ctx context.Context, fileUID types.FileUIDType, strategy types.Strategy, status types.StrategyStatus, meta *StrategyStatusMeta) error
	// SoftDeleteFiles sets the delete time on a batch of files and returns
	// the number of records affected.
	SoftDeleteFiles(ctx context.Context, fileUIDs []types.FileUIDType) (int64, error)
}

// StrategyStatusMeta carries the optional metadata of a status transition.
// Error lands on the strategy's StatusRecord; Text and Embedded update the
// file row in the same write.
type StrategyStatusMeta struct {
	Error    *string
	Text     *string
	Embedded *bool
}

// FileModel is the model for the file table.
type FileModel struct {
	UID       types.FileUIDType   `gorm:"column:uid;type:uuid;default:uuid_generate_v4();primaryKey" json:"uid"`
	UserUID   types.UserUIDType   `gorm:"column:user_uid;type:uuid;not null" json:"user_uid"`
	EntityUID types.EntityUIDType `gorm:"column:entity_uid;type:uuid;not null" json:"entity_uid"`
	Filename  string              `gorm:"column:filename;size:255;not null" json:"filename"`
	Mimetype  string              `gorm:"column:mimetype;size:255;not null" json:"mimetype"`
	Size      int64               `gorm:"column:size;not null" json:"size"`
	// Width and Height are populated for image uploads only.
	Width    *int                `gorm:"column:width" json:"width"`
	Height   *int                `gorm:"column:height" json:"height"`
	Category types.FileCategory  `gorm:"column:category;size:50;not null" json:"category"`
	Context  types.FileContext   `gorm:"column:context;size:50;not null" json:"context"`
	Source   types.StorageSource `gorm:"column:source;size:50;not null" json:"source"`
	// Filepath is the location within the storage backend named by Source.
	Filepath string `gorm:"column:filepath;not null" json:"filepath"`
	// FileIdentifier is the handle assigned by an external file store
	// (provider file API or code sandbox), when one is involved.
	FileIdentifier *string `gorm:"column:file_identifier" json:"file_identifier"`
	// Text holds extracted text for inline-context usage. Null until
	// extraction has run.
	Text *string `gorm:"column:text" json:"text"`
	// Embedded flips to true once the vector store holds this file's chunks.
	Embedded bool `gorm:"column:embedded;not null" json:"embedded"`
	// Strategies maps strategy name to its StatusRecord. Use StrategiesMap
	// and SetStrategiesMap, do not manipulate the raw JSON directly.
	Strategies datatypes.JSON `gorm:"column:strategies;type:jsonb;not null" json:"strategies"`
	UsageCount int64          `gorm:"column:usage_count;not null" json:"usage_count"`
	CreateTime *time.Time     `gorm:"column:create_time;not null;default:CURRENT_TIMESTAMP" json:"create_time"`
	UpdateTime *time.Time     `gorm:"column:update_time;not null;autoUpdateTime" json:"update_time"`
	DeleteTime *time.Time     `gorm:"column:delete_time" json:"delete_time"`
}

// TableName overrides the default table name for GORM
func (FileModel) TableName() string {
	return FileTableName
}

// FileColumns is the columns for the file table
type FileColumns struct {
	UID            string
	UserUID        string
	EntityUID      string
	Filename       string
	Mimetype       string
	Size           string
	Width          string
	Height         string
	Category       string
	Context        string
	Source         string
	Filepath       string
	FileIdentifier string
	Text           string
	Embedded       string
	Strategies     string
	UsageCount     string
	CreateTime     string
	UpdateTime     string
	DeleteTime     string
}

// FileColumn is the columns for the file table
var FileColumn = FileColumns{
	UID:            "uid",
	UserUID:        "user_uid",
	EntityUID:      "entity_uid",
	Filename:       "filename",
	Mimetype:       "mimetype",
	Size:           "size",
	Width:          "width",
	Height:         "height",
	Category:       "category",
	Context:        "context",
	Source:         "source",
	Filepath:       "filepath",
	FileIdentifier: "file_identifier",
	Text:           "text",
	Embedded:       "embedded",
	Strategies:     "strategies",
	UsageCount:     "usage_count",
	CreateTime:     "create_time",
	UpdateTime:     "update_time",
	DeleteTime:     "delete_time",
}

// StrategiesMap unmarshals the strategy matrix column into a map.
func (f *FileModel) StrategiesMap() (map[types.Strategy]types.StatusRecord, error) {
	m := map[types.Strategy]types.StatusRecord{}
	if len(f.Strategies) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(f.Strategies, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SetStrategiesMap marshals a strategy matrix into the column.
func (f *FileModel) SetStrategiesMap(m map[types.Strategy]types.StatusRecord) error {
	if m == nil {
		m = map[types.Strategy]types.StatusRecord{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	f.Strategies = datatypes.JSON(data)
	return nil
}

func (r *repository) CreateFile(ctx context.Context, file FileModel) (*FileModel, error) {
	if len(file.Strategies) == 0 {
		file.Strategies = datatypes.JSON("{}")
	}
	if err := r.db.WithContext(ctx).Create(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *repository) GetFilesByFileUIDs(
	ctx context.Context,
	fileUIDs []types.FileUIDType,
	columns ...string,
) ([]FileModel, error) {
	return r.getFilesByFileUIDs(ctx, fileUIDs, false, columns...)
}

func (r *repository) GetFilesByFileUIDsIncludingDeleted(
	ctx context.Context,
	fileUIDs []types.FileUIDType,
	columns ...string,
) ([]FileModel, error) {
	return r.getFilesByFileUIDs(ctx, fileUIDs, true, columns...)
}

func (r *repository) getFilesByFileUIDs(
	ctx context.Context,
	fileUIDs []types.FileUIDType,
	includeDeleted bool,
	columns ...string,
) ([]FileModel, error) {
	var files []FileModel
	// Convert UUIDs to strings as GORM works with strings in queries
	var stringUIDs []string
	for _, uid := range fileUIDs {
		stringUIDs = append(stringUIDs, uid.String())
	}

	where := fmt.Sprintf("%v IN ?", FileColumn.UID)
	if !includeDeleted {
		where = fmt.Sprintf("%v IN ? AND %v IS NULL", FileColumn.UID, FileColumn.DeleteTime)
	}

	query := r.db.WithContext(ctx)
	if len(columns) > 0 {
		query = query.Select(columns)
	}
	if err := query.Where(where, stringUIDs).Find(&files).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return []FileModel{}, nil
		}
		return nil, err
	}

	return files, nil
}

// ListFilesParams filters and paginates a file listing.
type ListFilesParams struct {
	EntityUID types.EntityUIDType
	UserUID   *types.UserUIDType
	Context   *types.FileContext
	PageSize  int32
	PageToken string
}

// FileList is a page of file records.
type FileList struct {
	Files         []FileModel
	TotalCount    int
	NextPageToken string
}

func (r *repository) ListFiles(ctx context.Context, params ListFilesParams) (*FileList, error) {
	var files []FileModel
	var totalCount int64

	whereClause := fmt.Sprintf("%v = ? AND %v IS NULL", FileColumn.EntityUID, FileColumn.DeleteTime)
	query := r.db.WithContext(ctx).Model(&FileModel{}).Where(whereClause, params.EntityUID.String())

	if params.UserUID != nil {
		query = query.Where(FileColumn.UserUID+" = ?", params.UserUID.String())
	}
	if params.Context != nil {
		query = query.Where(FileColumn.Context+" = ?", string(*params.Context))
	}

	if err := query.Count(&totalCount).Error; err != nil {
		return nil, err
	}

	pageSize := params.PageSize
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	} else if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	query = query.Order(FileColumn.CreateTime + " ASC").Limit(int(pageSize))

	if params.PageToken != "" {
		// The page token is the create_time of the last record of the
		// previous page.
		parsedTime, err := time.Parse(time.RFC3339Nano, params.PageToken)
		if err != nil {
			return nil, errorsx.AddMessage(
				fmt.Errorf("%w: invalid page token format", errorsx.ErrInvalidArgument),
				"Invalid page token.",
			)
		}
		query = query.Where(FileColumn.CreateTime+" > ?", parsedTime)
	}

	if err := query.Find(&files).Error; err != nil {
		return nil, err
	}

	nextPageToken := ""
	if len(files) == int(pageSize) && files[len(files)-1].CreateTime != nil {
		nextPageToken = files[len(files)-1].CreateTime.Format(time.RFC3339Nano)
	}

	return &FileList{
		Files:         files,
		TotalCount:    int(totalCount),
		NextPageToken: nextPageToken,
	}, nil
}

func (r *repository) UpdateFile(ctx context.Context, fileUID types.FileUIDType, updateMap map[string]any) (*FileModel, error) {
	var updatedFile FileModel

	// Use a transaction to update and then fetch the latest data
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&FileModel{}).
			Where(FileColumn.UID+" = ?", fileUID.String()).
			Updates(updateMap).Error; err != nil {
			return err
		}

		if err := tx.Where(FileColumn.UID+" = ?", fileUID.String()).First(&updatedFile).Error; err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errorsx.ErrNotFound
		}
		return nil, err
	}

	return &updatedFile, nil
}

func (r *repository) UpdateFileUsage(ctx context.Context, fileUID types.FileUIDType) error {
	result := r.db.WithContext(ctx).Model(&FileModel{}).
		Where(FileColumn.UID+" = ? AND "+FileColumn.DeleteTime+" IS NULL", fileUID.String()).
		Update(FileColumn.UsageCount, gorm.Expr(FileColumn.UsageCount+" + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errorsx.ErrNotFound
	}
	return nil
}

func (r *repository) SetStrategyStatus(ctx context.Context, fileUID types.FileUIDType, strategy types.Strategy, status types.StrategyStatus, meta *StrategyStatusMeta) error {
	// Strategy keys and status values form closed enums; reject anything
	// else before it reaches the persisted matrix.
	if !types.ValidStrategy(strategy) {
		return errorsx.AddMessage(
			fmt.Errorf("%w: unknown strategy %q", errorsx.ErrInvalidArgument, strategy),
			"Unknown strategy.",
		)
	}
	if !types.ValidStrategyStatus(status) {
		return errorsx.AddMessage(
			fmt.Errorf("%w: unknown strategy status %q", errorsx.ErrInvalidArgument, status),
			"Unknown strategy status.",
		)
	}

	now := time.Now().UTC()
	patch := map[string]any{
		"status":     status,
		"updated_at": now,
	}
	if types.TerminalStatus(status) {
		patch["completed_at"] = now
	}
	if meta != nil && meta.Error != nil {
		patch["error"] = *meta.Error
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return err
	}

	// The merge into the single strategy key is done in SQL so concurrent
	// status writes for different strategies of the same file do not clobber
	// each other. Fields outside the patch (started_at) survive the merge.
	updates := map[string]any{
		FileColumn.Strategies: gorm.Expr(
			fmt.Sprintf(
				"jsonb_set(%s, ?, coalesce(%s->?, '{}'::jsonb) || ?::jsonb, true)",
				FileColumn.Strategies, FileColumn.Strategies,
			),
			fmt.Sprintf("{%s}", strategy),
			string(strategy),
			string(patchJSON),
		),
	}
	if meta != nil && meta.Text != nil {
		updates[FileColumn.Text] = *meta.Text
	}
	if meta != nil && meta.Embedded != nil {
		updates[FileColumn.Embedded] = *meta.Embedded
	}

	result := r.db.WithContext(ctx).Model(&FileModel{}).
		Where(FileColumn.UID+" = ?", fileUID.String()).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errorsx.AddMessage(
			fmt.Errorf("%w: file %s", errorsx.ErrNotFound, fileUID.String()),
			"File not found.",
		)
	}
	return nil
}

func (r *repository) SoftDeleteFiles(ctx context.Context, fileUIDs []types.FileUIDType) (int64, error) {
	var stringUIDs []string
	for _, uid := range fileUIDs {
		stringUIDs = append(stringUIDs, uid.String())
	}

	currentTime := time.Now()
	whereClause := fmt.Sprintf("%v IN ? AND %v IS NULL", FileColumn.UID, FileColumn.DeleteTime)
	result := r.db.WithContext(ctx).Model(&FileModel{}).
		Where(whereClause, stringUIDs).
		Update(FileColumn.DeleteTime, currentTime)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
