package store

import (
	"context"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

var _ = Describe("Store analysis repository", func() {
	var (
		mockDB *sqlx.DB
		mock   sqlmock.Sqlmock
		repo   *Store
		ctx    context.Context
	)

	BeforeEach(func() {
		db, m, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())
		mockDB = sqlx.NewDb(db, "postgres")
		mock = m
		repo = New(mockDB, logrus.New())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(mockDB.Close()).To(Succeed())
	})

	Describe("InsertAnalysisHistory", func() {
		It("is a no-op for an empty batch", func() {
			Expect(repo.InsertAnalysisHistory(ctx, nil)).To(Succeed())
		})

		It("inserts one row per sub-analysis", func() {
			mock.ExpectExec(`INSERT INTO analysis_history`).WillReturnResult(sqlmock.NewResult(1, 5))

			rows := []models.AnalysisHistory{
				{PrimaryTestID: 1, Category: "performance", AnalysisType: "comprehensive", ModelName: "claude", AnalyzedAt: time.Now()},
			}

			err := repo.InsertAnalysisHistory(ctx, rows)

			Expect(err).ToNot(HaveOccurred())
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})
	})

	Describe("MarkAnalysisCompleted", func() {
		It("flips the completion flag and timestamp", func() {
			completedAt := time.Now()
			mock.ExpectExec(`UPDATE test_history SET is_analysis_completed = true`).
				WithArgs(completedAt, int64(1)).
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.MarkAnalysisCompleted(ctx, 1, completedAt)

			Expect(err).ToNot(HaveOccurred())
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})
	})

	Describe("AnalysisHistoryForTest", func() {
		It("filters by analysis type when one is given", func() {
			mock.ExpectQuery(`SELECT \* FROM analysis_history`).
				WithArgs(int64(1), "tps", 10).
				WillReturnRows(sqlmock.NewRows([]string{
					"id", "primary_test_id", "category", "analysis_type", "analysis_result", "model_name", "analyzed_at",
				}).AddRow(int64(1), int64(1), "performance", "tps", []byte(`{}`), "claude", time.Now()))

			rows, err := repo.AnalysisHistoryForTest(ctx, 1, "tps", 10)

			Expect(err).ToNot(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})

		It("returns every category when analysisType is empty", func() {
			mock.ExpectQuery(`SELECT \* FROM analysis_history`).
				WithArgs(int64(1), 50).
				WillReturnRows(sqlmock.NewRows([]string{
					"id", "primary_test_id", "category", "analysis_type", "analysis_result", "model_name", "analyzed_at",
				}))

			rows, err := repo.AnalysisHistoryForTest(ctx, 1, "", 50)

			Expect(err).ToNot(HaveOccurred())
			Expect(rows).To(BeEmpty())
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})
	})

	Describe("OverallMetricsTimeseries", func() {
		It("filters to the job-wide series", func() {
			mock.ExpectQuery(`SELECT \* FROM test_metrics_timeseries`).
				WithArgs(int64(1)).
				WillReturnRows(sqlmock.NewRows([]string{
					"id", "test_history_id", "scenario_history_id", "timestamp", "tps", "error_rate", "vus", "avg_rt", "p95_rt", "p99_rt",
				}).AddRow(int64(1), int64(1), nil, time.Now(), 10.0, 0.0, 5.0, 100.0, 150.0, 200.0))

			points, err := repo.OverallMetricsTimeseries(ctx, 1)

			Expect(err).ToNot(HaveOccurred())
			Expect(points).To(HaveLen(1))
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})
	})
})
