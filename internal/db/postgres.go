package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kineticare/kineticare-backend/internal/platform/envutil"
	"github.com/kineticare/kineticare-backend/internal/platform/logger"
	"github.com/kineticare/kineticare-backend/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := envutil.Str("POSTGRES_HOST", "localhost")
	postgresPort := envutil.Str("POSTGRES_PORT", "5432")
	postgresUser := envutil.Str("POSTGRES_USER", "postgres")
	postgresPassword := envutil.Str("POSTGRES_PASSWORD", "")
	postgresName := envutil.Str("POSTGRES_NAME", "kineticare")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := s.db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.ExerciseLibraryEntry{},
		&types.SuggestionSet{},
		&types.StageMetric{},
	); err != nil {
		return err
	}
	return s.seedExerciseLibrary()
}

// seedExerciseLibrary fills the reference table on first boot so generation
// has material to ground on. An already-populated table is left untouched.
func (s *PostgresService) seedExerciseLibrary() error {
	var count int64
	if err := s.db.Model(&types.ExerciseLibraryEntry{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	s.log.Info("Seeding exercise library...")
	entries := defaultExerciseLibrary()
	return s.db.Create(&entries).Error
}

func defaultExerciseLibrary() []*types.ExerciseLibraryEntry {
	return []*types.ExerciseLibraryEntry{
		{
			Name:           "Bird Dog",
			Condition:      "low back pain",
			Description:    "Quadruped contralateral arm and leg raise emphasizing lumbar spine neutrality and core endurance.",
			EvidenceSource: "McGill SM. Low Back Disorders. Human Kinetics; 2015.",
		},
		{
			Name:           "Side Plank",
			Condition:      "low back pain",
			Description:    "Lateral trunk endurance hold targeting quadratus lumborum and obliques with minimal spine load.",
			EvidenceSource: "McGill SM, Karpowicz A. Arch Phys Med Rehabil. 2009;90(1):118-126.",
		},
		{
			Name:           "Glute Bridge",
			Condition:      "low back pain",
			Description:    "Supine hip extension strengthening gluteus maximus while limiting lumbar hyperextension.",
			EvidenceSource: "Lehecka BJ, et al. Int J Sports Phys Ther. 2017;12(4):543-549.",
		},
		{
			Name:           "Nordic Hamstring Curl",
			Condition:      "hamstring strain",
			Description:    "Eccentric knee flexor loading shown to reduce hamstring injury recurrence.",
			EvidenceSource: "van der Horst N, et al. Am J Sports Med. 2015;43(6):1316-1323.",
		},
		{
			Name:           "Straight Leg Raise",
			Condition:      "knee osteoarthritis",
			Description:    "Supine quadriceps activation with the knee extended, useful when loaded flexion is painful.",
			EvidenceSource: "Fransen M, et al. Cochrane Database Syst Rev. 2015;(1):CD004376.",
		},
		{
			Name:           "Sit-to-Stand",
			Condition:      "knee osteoarthritis",
			Description:    "Functional lower-limb strengthening scaling chair height to tolerance.",
			EvidenceSource: "Bennell KL, Hinman RS. J Sci Med Sport. 2011;14(1):4-9.",
		},
		{
			Name:           "Pendulum Exercise",
			Condition:      "shoulder impingement",
			Description:    "Passive glenohumeral mobilization via gravity-assisted arm swings in forward lean.",
			EvidenceSource: "Kuhn JE. J Shoulder Elbow Surg. 2009;18(1):138-160.",
		},
		{
			Name:           "Scapular Retraction Row",
			Condition:      "shoulder impingement",
			Description:    "Resisted horizontal pulling with scapular setting to restore periscapular control.",
			EvidenceSource: "Struyf F, et al. Clin Rehabil. 2013;27(1):71-82.",
		},
		{
			Name:           "Heel Raise",
			Condition:      "achilles tendinopathy",
			Description:    "Progressive eccentric-concentric calf loading off a step edge.",
			EvidenceSource: "Alfredson H, et al. Am J Sports Med. 1998;26(3):360-366.",
		},
		{
			Name:           "Single Leg Balance",
			Condition:      "ankle sprain",
			Description:    "Proprioceptive stance training progressing from firm to compliant surfaces.",
			EvidenceSource: "McKeon PO, Hertel J. J Athl Train. 2008;43(3):305-315.",
		},
	}
}
