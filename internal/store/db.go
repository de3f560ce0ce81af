package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Evaluation{}, &Comparable{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveEvaluation creates an evaluation row.
func (d *Database) SaveEvaluation(e *Evaluation) error {
	if e == nil {
		return errors.New("evaluation is nil")
	}
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("evaluation id is empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(e).Error
}

// GetEvaluation fetches one evaluation by ID.
func (d *Database) GetEvaluation(id string) (*Evaluation, error) {
	var e Evaluation
	if err := d.gorm.Where("id = ?", id).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// EvaluationQuery encapsulates filters and pagination for listing evaluation rows.
type EvaluationQuery struct {
	Query          string
	PitchID        string
	Recommendation string
	State          string
	Sort           string
	Offset         int
	Limit          int
}

// ListEvaluations returns paginated evaluation records applying optional filters.
func (d *Database) ListEvaluations(opts EvaluationQuery) ([]Evaluation, int64, error) {
	var total int64
	base := d.gorm.Model(&Evaluation{})
	if opts.Query != "" {
		like := fmt.Sprintf("%%%s%%", opts.Query)
		base = base.Where("company_name LIKE ? OR pitch_id LIKE ?", like, like)
	}
	if pitch := strings.TrimSpace(opts.PitchID); pitch != "" {
		base = base.Where("pitch_id = ?", pitch)
	}
	if rec := strings.TrimSpace(opts.Recommendation); rec != "" {
		base = base.Where("LOWER(recommendation) = ?", strings.ToLower(rec))
	}
	if state := strings.TrimSpace(opts.State); state != "" {
		base = base.Where("state = ?", state)
	}

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	queryBuilder := base.Order(orderForSort(opts.Sort)).Offset(opts.Offset)
	if opts.Limit > 0 {
		queryBuilder = queryBuilder.Limit(opts.Limit)
	}

	var rows []Evaluation
	if err := queryBuilder.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func orderForSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "created_asc":
		return "evaluations.created_at ASC"
	case "risk_desc":
		return "evaluations.overall_risk_score DESC, evaluations.created_at DESC"
	case "risk_asc":
		return "evaluations.overall_risk_score ASC, evaluations.created_at DESC"
	case "valuation_desc":
		return "evaluations.mean_valuation DESC, evaluations.created_at DESC"
	case "confidence_desc":
		return "evaluations.confidence DESC, evaluations.created_at DESC"
	default:
		return "evaluations.created_at DESC"
	}
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_evaluations_overall_risk ON evaluations(overall_risk_score)",
		"CREATE INDEX IF NOT EXISTS idx_comparables_lookup ON comparables(sector, stage, geo)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
