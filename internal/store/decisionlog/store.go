package decisionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/logger"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/reward"
	"github.com/ShizNick84/SmoothSail-sub010/internal/store"

	_ "modernc.org/sqlite"
)

// DecisionLogStore 以追加方式记录每一次风险收益比判定，便于事后复盘。
type DecisionLogStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	ownsDB bool
}

var _ store.DecisionJournal = (*DecisionLogStore)(nil)

// DecisionRecord 对应 rr_decisions 表中的一行。
type DecisionRecord struct {
	ID                int64            `json:"id"`
	AnalysisID        string           `json:"analysis_id"`
	Timestamp         int64            `json:"ts"`
	Symbol            string           `json:"symbol"`
	Strategy          string           `json:"strategy"`
	Side              string           `json:"side"`
	RiskRewardRatio   float64          `json:"risk_reward_ratio"`
	EffectiveMinRatio float64          `json:"effective_min_ratio"`
	RiskPercentage    float64          `json:"risk_percentage"`
	Confidence        float64          `json:"confidence"`
	Approved          bool             `json:"approved"`
	Reasons           []string         `json:"rejection_reasons"`
	Analysis          *reward.Analysis `json:"analysis,omitempty"`
}

// DecisionQuery 用于筛选日志；Approved 为 nil 时不过滤。
type DecisionQuery struct {
	Symbol   string
	Strategy string
	Approved *bool
	Since    time.Time
	Limit    int
	Offset   int
}

// NewDecisionLogStore 初始化 SQLite 存储。
func NewDecisionLogStore(path string) (*DecisionLogStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("decision log path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureDecisionLogSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DecisionLogStore{db: db, path: path, ownsDB: true}, nil
}

// UseExternalDB 复用外部初始化的 SQLite 连接。
func (s *DecisionLogStore) UseExternalDB(db *sql.DB) error {
	if s == nil {
		return fmt.Errorf("decision log store 未初始化")
	}
	if db == nil {
		return fmt.Errorf("external db 不能为空")
	}
	if err := ensureDecisionLogSchema(db); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsDB && s.db != nil && s.db != db {
		_ = s.db.Close()
	}
	s.db = db
	s.ownsDB = false
	return nil
}

// Close 关闭底层 DB。
func (s *DecisionLogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if !s.ownsDB {
		s.db = nil
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *DecisionLogStore) conn() (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("decision log store 未初始化")
	}
	return db, nil
}

func ensureDecisionLogSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rr_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			analysis_id TEXT,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			strategy TEXT NOT NULL,
			side TEXT,
			rr_ratio REAL NOT NULL DEFAULT 0,
			effective_min REAL NOT NULL DEFAULT 0,
			risk_pct REAL NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			approved INTEGER NOT NULL,
			reasons_json TEXT,
			analysis_json TEXT,
			created_at INTEGER NOT NULL
		);
		`,
		`CREATE INDEX IF NOT EXISTS idx_rr_decisions_ts_id ON rr_decisions(ts DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_rr_decisions_symbol ON rr_decisions(symbol);`,
		`CREATE INDEX IF NOT EXISTS idx_rr_decisions_strategy ON rr_decisions(strategy);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return ensureDecisionLogColumns(db)
}

func ensureDecisionLogColumns(db *sql.DB) error {
	cols := []struct {
		table  string
		column string
		typ    string
	}{
		{"rr_decisions", "analysis_id", "TEXT"},
		{"rr_decisions", "analysis_json", "TEXT"},
	}
	for _, col := range cols {
		if err := addColumnIfMissing(db, col.table, col.column, col.typ); err != nil {
			return err
		}
	}
	return nil
}

func addColumnIfMissing(db *sql.DB, table, column, typ string) error {
	query := fmt.Sprintf("PRAGMA table_info(%s)", table)
	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	exists := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			exists = true
			break
		}
	}
	if exists {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ)
	_, err = db.Exec(stmt)
	return err
}

// Append 写入一条判定记录，返回自增 ID。
func (s *DecisionLogStore) Append(ctx context.Context, a reward.Analysis) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	ts := a.AnalyzedAt.UnixMilli()
	if a.AnalyzedAt.IsZero() {
		ts = time.Now().UnixMilli()
	}
	enc := func(v interface{}) string {
		if v == nil {
			return ""
		}
		b, err := json.Marshal(v)
		if err != nil {
			logger.Warnf("decision log: 编码失败 %s: %v", a.ID, err)
			return ""
		}
		return string(b)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO rr_decisions
			(analysis_id, ts, symbol, strategy, side, rr_ratio, effective_min, risk_pct,
			 confidence, approved, reasons_json, analysis_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		ts,
		strings.ToUpper(strings.TrimSpace(a.Symbol)),
		a.Strategy,
		string(a.Side),
		a.RiskRewardRatio,
		a.EffectiveMinRatio,
		a.RiskPercentage,
		a.Confidence,
		boolToInt(a.Approved),
		enc(a.RejectionReasons),
		enc(a),
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return id, nil
}

func buildDecisionFilter(q DecisionQuery) (string, []interface{}) {
	var args []interface{}
	var sb strings.Builder
	sb.WriteString(" WHERE 1=1")
	if sym := strings.ToUpper(strings.TrimSpace(q.Symbol)); sym != "" {
		sb.WriteString(" AND symbol=?")
		args = append(args, sym)
	}
	if strategy := strings.TrimSpace(q.Strategy); strategy != "" {
		sb.WriteString(" AND strategy=?")
		args = append(args, strategy)
	}
	if q.Approved != nil {
		sb.WriteString(" AND approved=?")
		args = append(args, boolToInt(*q.Approved))
	}
	if !q.Since.IsZero() {
		sb.WriteString(" AND ts>=?")
		args = append(args, q.Since.UnixMilli())
	}
	return sb.String(), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const selectColumns = `SELECT id, analysis_id, ts, symbol, strategy, side, rr_ratio, effective_min,
		risk_pct, confidence, approved, reasons_json, analysis_json FROM rr_decisions`

func scanDecisionRecord(scanner rowScanner) (DecisionRecord, error) {
	var (
		rec        DecisionRecord
		analysisID sql.NullString
		side       sql.NullString
		approved   sql.NullInt64
		reasons    sql.NullString
		payload    sql.NullString
	)
	if err := scanner.Scan(&rec.ID, &analysisID, &rec.Timestamp, &rec.Symbol, &rec.Strategy, &side,
		&rec.RiskRewardRatio, &rec.EffectiveMinRatio, &rec.RiskPercentage, &rec.Confidence,
		&approved, &reasons, &payload); err != nil {
		return rec, err
	}
	rec.AnalysisID = analysisID.String
	rec.Side = side.String
	rec.Approved = nullIntToBool(approved)
	rec.Reasons = decodeStringArray(reasons.String)
	if payload.Valid && strings.TrimSpace(payload.String) != "" {
		var a reward.Analysis
		if err := json.Unmarshal([]byte(payload.String), &a); err == nil {
			rec.Analysis = &a
		}
	}
	return rec, nil
}

// GetDecision 根据主键 ID 返回单条记录。
func (s *DecisionLogStore) GetDecision(ctx context.Context, id int64) (DecisionRecord, error) {
	if id <= 0 {
		return DecisionRecord{}, fmt.Errorf("invalid decision id: %w", risk.ErrInvalidInput)
	}
	db, err := s.conn()
	if err != nil {
		return DecisionRecord{}, err
	}
	row := db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	return scanDecisionRecord(row)
}

// ListDecisions 返回最新的判定记录（按时间倒序）。
func (s *DecisionLogStore) ListDecisions(ctx context.Context, q DecisionQuery) ([]DecisionRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	filterSQL, args := buildDecisionFilter(q)
	var sb strings.Builder
	sb.WriteString(selectColumns)
	sb.WriteString(filterSQL)
	sb.WriteString(" ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?")
	args = append(args, limit, offset)
	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DecisionRecord
	for rows.Next() {
		rec, err := scanDecisionRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountDecisions 统计满足条件的记录数量。
func (s *DecisionLogStore) CountDecisions(ctx context.Context, q DecisionQuery) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	filterSQL, args := buildDecisionFilter(q)
	var n int
	err = db.QueryRowContext(ctx, "SELECT COUNT(1) FROM rr_decisions"+filterSQL, args...).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIntToBool(v sql.NullInt64) bool {
	return v.Valid && v.Int64 != 0
}

func decodeStringArray(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
