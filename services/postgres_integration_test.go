package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"research-showcase-api/models"
	"research-showcase-api/utils"
)

// Set RUN_INTEGRATION=1 with a reachable Docker daemon to run against PostgreSQL.
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" || testing.Short() {
		t.Skip("set RUN_INTEGRATION=1 to run PostgreSQL integration tests")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("showcase"),
		tcpostgres.WithUsername("showcase"),
		tcpostgres.WithPassword("showcase"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestPostgresReviewAndSearch(t *testing.T) {
	db := newPostgresDB(t)
	ctx := context.Background()

	author := createUser(t, db, "faculty", models.RoleFaculty)
	admin := createUser(t, db, "admin", models.RoleAdmin)
	workflow := NewWorkflowService(db, nil, NewNotificationDispatcher(5*time.Second, NewInAppNotifier(db)))

	p, err := workflow.Submit(ctx, ActorFromUser(*author), validInput("Machine Learning Analysis"))
	require.NoError(t, err)
	res, err := workflow.Approve(ctx, ActorFromUser(*admin), p.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	_, err = workflow.Reject(ctx, ActorFromUser(*admin), p.ID, "")
	assert.True(t, utils.IsCode(err, utils.CodeConflict))
	assert.Len(t, historyOf(t, db, p.ID), 2)
	assert.Equal(t, int64(1), count(t, db, &models.Notification{}))

	search := NewSearchService(db)
	found, err := search.Search(ctx, SearchParams{Query: "learning", StartSemester: "Spring 2024", EndSemester: "Spring 2024"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Machine Learning Analysis"}, titles(found.Projects))

	found, err = search.Search(ctx, SearchParams{StartSemester: "Fall 2024", EndSemester: "Fall 2024"})
	require.NoError(t, err)
	assert.Empty(t, found.Projects)
}
