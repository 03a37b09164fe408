package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCounterRejectsBadName(t *testing.T) {
	r := New("svc")
	err := r.RegisterCounter("2bad", "")
	assert.ErrorIs(t, err, ErrBadName)
}

func TestRegisterCounterRejectsDuplicate(t *testing.T) {
	r := New("svc")
	require.NoError(t, r.RegisterCounter("files_failed", "help"))
	err := r.RegisterCounter("files_failed", "help")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestIncrementUnregisteredIsSilent(t *testing.T) {
	r := New("svc")
	assert.NotPanics(t, func() { r.Increment("nope", 1) })
}

func TestExportTextContainsCounterAndTaskTime(t *testing.T) {
	r := New("svc")
	require.NoError(t, r.RegisterCounter("files_failed", "files that failed filtering"))
	r.Increment("files_failed", 3)
	r.RecordTaskTime("file_processing_time", 12.5)

	out, err := r.ExportText()
	require.NoError(t, err)
	assert.Contains(t, out, "svc_files_failed")
	assert.Contains(t, out, "svc_file_processing_time_sum_ms")
	assert.Contains(t, out, "svc_file_processing_time_count")
}

func TestRecordTaskTimeAccumulates(t *testing.T) {
	r := New("svc")
	r.RecordTaskTime("file_processing_time", 10)
	r.RecordTaskTime("file_processing_time", 20)

	out, err := r.ExportText()
	require.NoError(t, err)
	assert.Contains(t, out, "svc_file_processing_time_sum_ms 30")
	assert.Contains(t, out, "svc_file_processing_time_count 2")
}
