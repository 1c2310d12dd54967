package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestScheduleCmd_RunsAndRecords(t *testing.T) {
	m := newMockSuiteIO(t, map[string]string{"gcc.dg/a.c": passingTest})
	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	c := NewScheduleCmd(m)
	out, errOut := &syncBuffer{}, &syncBuffer{}
	c.SetOut(out)
	c.SetErr(errOut)
	c.SetArgs([]string{"--cron", "@every 1s"})
	if err := c.ExecuteContext(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(errOut.String(), "next run at 2024-05-01T12:00:01Z") {
		t.Errorf("stderr = %q", errOut)
	}
	if !strings.Contains(out.String(), "1 tests, 1 passed") {
		t.Errorf("stdout = %q", out)
	}
	h, err := m.OpenHistory(m.cfg.History)
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	defer h.Close()
	runs, err := h.Runs(context.Background(), 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) == 0 {
		t.Error("scheduled run was not recorded")
	}
}

func TestScheduleCmd_Errors(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		args     []string
		want     string
	}{
		{"no schedule", "", nil, "no schedule given"},
		{"bad flag", "", []string{"--cron", "every tuesday"}, `parsing schedule "every tuesday"`},
		{"bad config", "61 * * * *", nil, `parsing schedule "61 * * * *"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockSuiteIO(t, nil)
			m.cfg.Schedule = tt.schedule
			c := NewScheduleCmd(m)
			c.SetOut(new(bytes.Buffer))
			c.SetErr(new(bytes.Buffer))
			c.SetArgs(tt.args)
			err := c.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}
