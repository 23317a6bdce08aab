// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package rowstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradejournal/tradejournal/internal/rowstore"
)

func TestFileTable(t *testing.T) {
	exerciseTable(t, func(t *testing.T) rowstore.Table {
		f, err := rowstore.OpenFile(filepath.Join(t.TempDir(), "journal.yaml"))
		require.NoError(t, err)
		return f.Table("tokens", tokenColumns...)
	})
}

func TestOpenFile_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.yaml")

	f, err := rowstore.OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file should not be created until first write")
}

func TestOpenFile_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.yaml")

	f, err := rowstore.OpenFile(path)
	require.NoError(t, err)
	users := f.Table("user", "employeeId", "email")
	tokens := f.Table("tokens", tokenColumns...)
	require.NoError(t, users.Append(ctx, rowstore.Row{"employeeId": "E001", "email": "e001@co.com"}))
	require.NoError(t, tokens.Append(ctx, rowstore.Row{"userId": "E001", "token": "t1"}))

	reopened, err := rowstore.OpenFile(path)
	require.NoError(t, err)

	rows, err := reopened.Table("user", "employeeId", "email").Scan(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "e001@co.com", rows[0]["email"])

	rows, err = reopened.Table("tokens", tokenColumns...).Scan(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t1", rows[0]["token"])
}

func TestOpenFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f, err := rowstore.OpenFile(filepath.Join(dir, "journal.yaml"))
	require.NoError(t, err)

	tbl := f.Table("tokens", tokenColumns...)
	for _, tok := range []string{"a", "b", "c"} {
		require.NoError(t, tbl.Append(context.Background(), rowstore.Row{"userId": "E001", "token": tok}))
	}

	tmps, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmps)
	assert.FileExists(t, filepath.Join(dir, "journal.yaml"))
}

func TestOpenFile_SharedPath(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.yaml")

	server, err := rowstore.OpenFile(path)
	require.NoError(t, err)
	cli, err := rowstore.OpenFile(path)
	require.NoError(t, err)

	serverUsers := server.Table("user", "employeeId", "email", "status")
	serverTokens := server.Table("tokens", tokenColumns...)
	cliUsers := cli.Table("user", "employeeId", "email", "status")

	require.NoError(t, serverUsers.Append(ctx, rowstore.Row{"employeeId": "E100", "email": "e100@co.com", "status": "1"}))

	t.Run("rows added by another handle are visible", func(t *testing.T) {
		require.NoError(t, cliUsers.Append(ctx, rowstore.Row{"employeeId": "E001", "email": "e001@co.com", "status": "1"}))

		rows, err := serverUsers.Scan(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "E001", rows[1]["employeeId"])
	})

	t.Run("writes keep rows from another handle", func(t *testing.T) {
		require.NoError(t, serverTokens.Append(ctx, rowstore.Row{"userId": "E999", "token": "t1"}))

		reopened, err := rowstore.OpenFile(path)
		require.NoError(t, err)
		rows, err := reopened.Table("user", "employeeId", "email", "status").Scan(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "E001", rows[1]["employeeId"])
	})

	t.Run("updates from another handle are not undone", func(t *testing.T) {
		n, err := cliUsers.Update(ctx, rowstore.Key{Column: "employeeId", Value: "E001"}, rowstore.Row{"status": "0"})
		require.NoError(t, err)
		require.Equal(t, 1, n)

		_, err = serverTokens.Delete(ctx, rowstore.Key{Column: "userId", Value: "E999"})
		require.NoError(t, err)

		reopened, err := rowstore.OpenFile(path)
		require.NoError(t, err)
		rows, err := reopened.Table("user", "employeeId", "email", "status").Scan(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "0", rows[1]["status"])
	})
}
