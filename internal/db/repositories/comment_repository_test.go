package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newCommentRepo(t *testing.T) (sqlmock.Sqlmock, *CommentRepository) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return mock, NewCommentRepository(db)
}

var commentCols = []string{
	"id", "project_id", "task_id", "parent_id", "body",
	"author_user_id", "author_tenant_id", "created_at",
}

var reactionCols = []string{
	"id", "comment_id", "emoji", "reactor_user_id", "reactor_tenant_id", "created_at",
}

// ---------------------------------------------------------------------------
// Thread assembly
// ---------------------------------------------------------------------------

func TestListCommentsForProject_NestsReplies(t *testing.T) {
	mock, repo := newCommentRepo(t)
	projectID := "proj-1"
	tenant := "wdk_abc"
	admin := "admin-1"
	parent := "c-1"

	mock.ExpectQuery(`FROM comments\s+WHERE project_id`).
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows(commentCols).
			AddRow("c-1", &projectID, nil, nil, "hello", nil, &tenant, time.Now()).
			AddRow("c-2", &projectID, nil, &parent, "hi back", &admin, nil, time.Now()))
	mock.ExpectQuery(`FROM comment_reactions`).
		WillReturnRows(sqlmock.NewRows(reactionCols).
			AddRow("r-1", "c-1", "👍", &admin, nil, time.Now()))

	roots, err := repo.ListCommentsForProject(context.Background(), projectID)
	if err != nil {
		t.Fatalf("ListCommentsForProject: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("roots = %d, want 1", len(roots))
	}
	if len(roots[0].Replies) != 1 || roots[0].Replies[0].ID != "c-2" {
		t.Errorf("reply not nested under parent: %+v", roots[0].Replies)
	}
	if len(roots[0].Reactions) != 1 || roots[0].Reactions[0].Emoji != "👍" {
		t.Errorf("reaction not attached: %+v", roots[0].Reactions)
	}
	if !roots[0].OwnedByTenant("wdk_abc") {
		t.Error("root comment should be owned by its authoring tenant")
	}
	if !roots[0].Replies[0].OwnedByAdmin("admin-1") {
		t.Error("reply should be owned by its authoring admin")
	}
}

func TestListCommentsForTask_OrphanedReplySurfaces(t *testing.T) {
	mock, repo := newCommentRepo(t)
	taskID := "task-1"
	tenant := "wdk_abc"
	gone := "c-deleted"

	mock.ExpectQuery(`FROM comments\s+WHERE task_id`).
		WithArgs(taskID).
		WillReturnRows(sqlmock.NewRows(commentCols).
			AddRow("c-3", nil, &taskID, &gone, "orphan", nil, &tenant, time.Now()))
	mock.ExpectQuery(`FROM comment_reactions`).
		WillReturnRows(sqlmock.NewRows(reactionCols))

	roots, err := repo.ListCommentsForTask(context.Background(), taskID)
	if err != nil {
		t.Fatalf("ListCommentsForTask: %v", err)
	}
	if len(roots) != 1 || roots[0].ID != "c-3" {
		t.Errorf("orphaned reply should surface at top level, got %+v", roots)
	}
}

// ---------------------------------------------------------------------------
// ToggleReaction
// ---------------------------------------------------------------------------

func TestToggleReaction_AddsWhenAbsent(t *testing.T) {
	mock, repo := newCommentRepo(t)
	tenant := "wdk_abc"

	mock.ExpectExec(`INSERT INTO comment_reactions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	present, err := repo.ToggleReaction(context.Background(), "c-1", "🎉", nil, &tenant)
	if err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}
	if !present {
		t.Error("present = false, want true after adding")
	}
}

func TestToggleReaction_RemovesOnConflict(t *testing.T) {
	mock, repo := newCommentRepo(t)
	admin := "admin-1"

	mock.ExpectExec(`INSERT INTO comment_reactions`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM comment_reactions WHERE comment_id .+ reactor_user_id`).
		WithArgs("c-1", "🎉", "admin-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	present, err := repo.ToggleReaction(context.Background(), "c-1", "🎉", &admin, nil)
	if err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}
	if present {
		t.Error("present = true, want false after removal")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
