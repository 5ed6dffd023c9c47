package httpapi

import (
	"context"
	"errors"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

var errDBDown = errors.New("connection refused")

type fakeAnalysisStore struct {
	rows []models.AnalysisHistory
	err  error

	gotAnalysisType string
	gotLimit        int
}

func (f *fakeAnalysisStore) AnalysisHistoryForTest(_ context.Context, _ int64, analysisType string, limit int) ([]models.AnalysisHistory, error) {
	f.gotAnalysisType = analysisType
	f.gotLimit = limit
	return f.rows, f.err
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

type fakeLLM struct {
	healthy bool
	model   string
}

func (f *fakeLLM) HealthCheck(context.Context) (bool, string) { return f.healthy, f.model }
