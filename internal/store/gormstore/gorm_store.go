package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/portfolio"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/trailing"
	"github.com/ShizNick84/SmoothSail-sub010/internal/store"
	storemodel "github.com/ShizNick84/SmoothSail-sub010/internal/store/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type stopUpdateModel = storemodel.StopUpdateModel
type portfolioReportModel = storemodel.PortfolioReportModel

const defaultListLimit = 100

// GormStore 使用 Gorm + SQLite 保存止损审计记录与组合风险报告。
type GormStore struct {
	db *gorm.DB
}

var (
	_ store.StopAuditRepository       = (*GormStore)(nil)
	_ store.PortfolioReportRepository = (*GormStore)(nil)
)

// NewGormStore 打开（必要时创建）SQLite 文件并迁移表结构。
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: 数据库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&stopUpdateModel{}, &portfolioReportModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: 少量并发读即可，避免锁竞争。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

// Close 关闭底层连接。
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --------------------- Stop audit -------------------------

func (s *GormStore) SaveStopUpdate(ctx context.Context, rec trailing.Update) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	if strings.TrimSpace(rec.PositionID) == "" {
		return fmt.Errorf("position_id 必填: %w", risk.ErrInvalidInput)
	}
	m := newStopUpdateModel(rec)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m).Error
}

// ListStopUpdates 返回某个仓位最近的止损记录，按时间升序。
func (s *GormStore) ListStopUpdates(ctx context.Context, positionID string, limit int) ([]trailing.Update, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	positionID = strings.TrimSpace(positionID)
	if positionID == "" {
		return nil, fmt.Errorf("position_id 必填: %w", risk.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	var models []stopUpdateModel
	err := s.db.WithContext(ctx).
		Where("position_id = ?", positionID).
		Order("created_at DESC, rowid DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]trailing.Update, len(models))
	for i, m := range models {
		out[len(models)-1-i] = stopUpdateModelToRecord(m)
	}
	return out, nil
}

// --------------------- Portfolio reports -------------------------

func (s *GormStore) SavePortfolioReport(ctx context.Context, rep portfolio.Report) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	id := rep.ID
	if id == "" {
		id = uuid.NewString()
	}
	at := rep.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	m := portfolioReportModel{
		ID:              id,
		RiskScore:       rep.RiskScore,
		TotalValue:      rep.Metrics.TotalValue,
		Violations:      len(rep.Violations),
		Recommendations: len(rep.Recommendations),
		Payload:         datatypes.JSON(payload),
		CreatedAtUnix:   at.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// LatestPortfolioReport 读取最近一次保存的报告；表为空时 ok=false。
func (s *GormStore) LatestPortfolioReport(ctx context.Context) (portfolio.Report, bool, error) {
	if s == nil || s.db == nil {
		return portfolio.Report{}, false, fmt.Errorf("gorm store 未初始化")
	}
	var m portfolioReportModel
	err := s.db.WithContext(ctx).Order("created_at DESC, rowid DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return portfolio.Report{}, false, nil
	}
	if err != nil {
		return portfolio.Report{}, false, err
	}
	var rep portfolio.Report
	if err := json.Unmarshal(m.Payload, &rep); err != nil {
		return portfolio.Report{}, false, fmt.Errorf("decode report %s: %w", m.ID, err)
	}
	return rep, true, nil
}

// CountPortfolioReports 返回已保存的报告数量。
func (s *GormStore) CountPortfolioReports(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store 未初始化")
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&portfolioReportModel{}).Count(&n).Error
	return n, err
}

// --------------------------- Model Helpers ------------------------------

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func newStopUpdateModel(rec trailing.Update) stopUpdateModel {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return stopUpdateModel{
		ID:            id,
		PositionID:    strings.TrimSpace(rec.PositionID),
		Symbol:        rec.Symbol,
		Side:          string(rec.Side),
		PreviousStop:  rec.PreviousStop,
		NewStop:       rec.NewStop,
		Price:         rec.Price,
		Reason:        rec.Reason,
		CreatedAtUnix: ts.UnixMilli(),
	}
}

func stopUpdateModelToRecord(m stopUpdateModel) trailing.Update {
	return trailing.Update{
		ID:           m.ID,
		PositionID:   m.PositionID,
		Symbol:       m.Symbol,
		Side:         risk.Side(m.Side),
		PreviousStop: m.PreviousStop,
		NewStop:      m.NewStop,
		Price:        m.Price,
		Reason:       m.Reason,
		Timestamp:    millisToTime(m.CreatedAtUnix),
	}
}

func millisToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}
