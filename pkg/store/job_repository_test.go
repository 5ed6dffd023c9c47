package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

var _ = Describe("Store job repository", func() {
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

	historyColumns := []string{
		"id", "project_id", "title", "description", "target_tps", "tested_at", "job_name",
		"script_filename", "is_completed", "completed_at", "is_analysis_completed", "analysis_completed_at",
		"avg_tps", "min_tps", "max_tps",
		"avg_response_time", "min_response_time", "max_response_time",
		"p50_response_time", "p95_response_time", "p99_response_time",
		"min_error_rate", "max_error_rate", "avg_error_rate",
		"min_vus", "max_vus", "avg_vus",
		"total_requests", "failed_requests", "test_duration",
	}

	Describe("FindTestHistoryByJobName", func() {
		It("returns found=true when a row matches", func() {
			now := time.Now()
			mock.ExpectQuery(`SELECT \* FROM test_history WHERE job_name`).
				WithArgs("load-test-42").
				WillReturnRows(sqlmock.NewRows(historyColumns).AddRow(
					int64(1), int64(1), "Load test", "", nil, now, "load-test-42",
					"script.js", false, nil, false, nil,
					nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
				))

			history, found, err := repo.FindTestHistoryByJobName(ctx, "load-test-42")

			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(history.JobName).To(Equal("load-test-42"))
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})

		It("returns found=false without an error when no row matches", func() {
			mock.ExpectQuery(`SELECT \* FROM test_history WHERE job_name`).
				WithArgs("missing-job").
				WillReturnError(sql.ErrNoRows)

			history, found, err := repo.FindTestHistoryByJobName(ctx, "missing-job")

			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeFalse())
			Expect(history).To(BeNil())
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})
	})

	Describe("InsertMetricsTimeseries", func() {
		It("is a no-op for an empty batch", func() {
			err := repo.InsertMetricsTimeseries(ctx, nil)
			Expect(err).ToNot(HaveOccurred())
		})

		It("inserts every point", func() {
			mock.ExpectExec(`INSERT INTO test_metrics_timeseries`).
				WillReturnResult(sqlmock.NewResult(1, 1))

			err := repo.InsertMetricsTimeseries(ctx, []models.TestMetricsTimeseries{{
				TestHistoryID: 1, Timestamp: time.Now(), TPS: 42.0,
			}})

			Expect(err).ToNot(HaveOccurred())
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})
	})

	Describe("ServerInfrasForEndpoint", func() {
		It("joins through the spec version to the endpoint", func() {
			mock.ExpectQuery(`SELECT si\.\* FROM server_infra si`).
				WithArgs(int64(11)).
				WillReturnRows(sqlmock.NewRows([]string{
					"id", "spec_id", "namespace", "name", "group_name", "resource_type", "environment", "service_type",
				}).AddRow(int64(2), int64(5), "default", "orders-0", "orders-svc", "Pod", "", "SERVER"))

			infras, err := repo.ServerInfrasForEndpoint(ctx, 11)

			Expect(err).ToNot(HaveOccurred())
			Expect(infras).To(HaveLen(1))
			Expect(infras[0].Name).To(Equal("orders-0"))
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})
	})
})
