package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestRun_TestTableKeepsTrainingKinds(t *testing.T) {
	dir := t.TempDir()
	cities := []string{"Tokyo", "Osaka", "Kyoto"}
	train := []string{"id,age,city,match"}
	for i := 0; i < 60; i++ {
		label := i % 2
		train = append(train, fmt.Sprintf("%d,%d,%s,%d", i, 20+i%15+10*label, cities[i%3], label))
	}
	trainPath := writeCSV(t, dir, "train.csv", train)
	// city は全て欠損、推論だけなら Float に見える
	testPath := writeCSV(t, dir, "test.csv", []string{
		"id,age,city",
		"100,31,",
		"101,44,",
		"102,,",
	})

	results := filepath.Join(dir, "out")
	flags := Flags{Seed: 1, Workers: 1, NIter: 2, CV: 3, Families: "LR", Results: results, LogLevel: "error"}
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), flags, trainPath, testPath, &stdout, &stderr))

	data, err := os.ReadFile(filepath.Join(results, "RandomSearchLR.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "id,match", lines[0])
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "100,"))
}
