//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jcuenca6779/urbandrive/internal/domain"
	"github.com/jcuenca6779/urbandrive/pkg/e"
)

var (
	testPool *pgxpool.Pool
	tc       testcontainers.Container
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	user := "postgres"
	pass := "postgres"
	db := "postgres"

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     user,
			"POSTGRES_PASSWORD": pass,
			"POSTGRES_DB":       db,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(90 * time.Second),
	}

	var err error
	tc, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Println("cannot start container:", err)
		os.Exit(1)
	}

	host, _ := tc.Host(ctx)
	mappedPort, _ := tc.MappedPort(ctx, "5432/tcp")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, mappedPort.Port(), db)

	testPool, err = pgxpool.New(ctx, dsn)
	if err != nil {
		fmt.Println("pgxpool.New:", err)
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	if err := testPool.Ping(ctx); err != nil {
		fmt.Println("pool.Ping:", err)
		testPool.Close()
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	if _, err := testPool.Exec(ctx, schemaSQL); err != nil {
		fmt.Println("apply schema:", err)
		testPool.Close()
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()

	testPool.Close()
	_ = tc.Terminate(ctx)
	os.Exit(code)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func truncateAll(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		`TRUNCATE TABLE validaciones_incidentes, incidentes RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func seedIncident(t *testing.T, repo *IncidentRepo, ownerID int64) *domain.Incident {
	t.Helper()

	inc := &domain.Incident{
		Type:        "accidente",
		Description: "choque en la carrera 7",
		Lat:         4.65,
		Lng:         -74.05,
		Severity:    domain.SeverityHigh,
		OwnerID:     ownerID,
	}
	if err := repo.Create(context.Background(), inc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return inc
}

func TestIncidentRepo_Create_SetsDefaults(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())

	inc := seedIncident(t, repo, 1)

	if inc.ID == 0 {
		t.Fatalf("expected ID set")
	}
	if inc.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt set")
	}
	if inc.ValidationsCount != 0 {
		t.Fatalf("expected 0 validations, got %d", inc.ValidationsCount)
	}

	got, err := repo.Get(context.Background(), inc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != domain.IncidentPending {
		t.Fatalf("new incident must be pendiente, got %s", got.State)
	}
	if got.Severity != domain.SeverityHigh || got.OwnerID != 1 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if got.UpdatedAt != nil {
		t.Fatalf("updated_at must be null until first mutation")
	}
}

func TestIncidentRepo_Get_NotFound(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())

	_, err := repo.Get(context.Background(), 999)
	if !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIncidentRepo_SubmitValidation_FirstMovesToValidado(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())
	inc := seedIncident(t, repo, 1)

	res, err := repo.SubmitValidation(context.Background(), inc.ID, 2)
	if err != nil {
		t.Fatalf("SubmitValidation: %v", err)
	}

	if res.ValidationsCount != 1 {
		t.Fatalf("expected count 1, got %d", res.ValidationsCount)
	}
	if res.State != domain.IncidentValidated {
		t.Fatalf("first validation moves pendiente to validado, got %s", res.State)
	}
	if res.JustVerified {
		t.Fatalf("one validation must not verify")
	}
	if res.OwnerID != 1 || res.IncidentType != "accidente" {
		t.Fatalf("result must carry incident attributes: %+v", res)
	}

	got, err := repo.Get(context.Background(), inc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UpdatedAt == nil {
		t.Fatalf("updated_at must be set after a validation")
	}
}

func TestIncidentRepo_SubmitValidation_SelfRejected(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())
	inc := seedIncident(t, repo, 1)

	_, err := repo.SubmitValidation(context.Background(), inc.ID, 1)
	if !errors.Is(err, e.ErrSelfValidation) {
		t.Fatalf("expected ErrSelfValidation, got %v", err)
	}

	got, _ := repo.Get(context.Background(), inc.ID)
	if got.ValidationsCount != 0 || got.State != domain.IncidentPending {
		t.Fatalf("rejected validation must not mutate the incident: %+v", got)
	}
}

func TestIncidentRepo_SubmitValidation_DuplicateRejected(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())
	inc := seedIncident(t, repo, 1)

	if _, err := repo.SubmitValidation(context.Background(), inc.ID, 2); err != nil {
		t.Fatalf("first validation: %v", err)
	}

	_, err := repo.SubmitValidation(context.Background(), inc.ID, 2)
	if !errors.Is(err, e.ErrDuplicateValidation) {
		t.Fatalf("expected ErrDuplicateValidation, got %v", err)
	}

	got, _ := repo.Get(context.Background(), inc.ID)
	if got.ValidationsCount != 1 {
		t.Fatalf("duplicate must not bump the count: %d", got.ValidationsCount)
	}
}

func TestIncidentRepo_SubmitValidation_NotFound(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())

	_, err := repo.SubmitValidation(context.Background(), 12345, 2)
	if !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIncidentRepo_SubmitValidation_QuorumVerifies(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())
	inc := seedIncident(t, repo, 1)

	var last domain.ValidationResult
	for userID := int64(2); userID < 2+int64(domain.VerificationQuorum); userID++ {
		res, err := repo.SubmitValidation(context.Background(), inc.ID, userID)
		if err != nil {
			t.Fatalf("validation by %d: %v", userID, err)
		}
		last = res
	}

	if !last.JustVerified {
		t.Fatalf("quorum validation must report JustVerified")
	}
	if last.State != domain.IncidentVerified {
		t.Fatalf("expected verificado, got %s", last.State)
	}
	if last.ValidationsCount != domain.VerificationQuorum {
		t.Fatalf("expected count %d, got %d", domain.VerificationQuorum, last.ValidationsCount)
	}

	// Late validation by a fresh user: success without mutation.
	late, err := repo.SubmitValidation(context.Background(), inc.ID, 99)
	if err != nil {
		t.Fatalf("late validation: %v", err)
	}
	if late.JustVerified {
		t.Fatalf("verification must fire exactly once")
	}
	if late.State != domain.IncidentVerified || late.ValidationsCount != domain.VerificationQuorum {
		t.Fatalf("late validation must be a no-op: %+v", late)
	}

	var recorded int
	if err := testPool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM validaciones_incidentes WHERE incidente_id = $1`, inc.ID,
	).Scan(&recorded); err != nil {
		t.Fatalf("count validations: %v", err)
	}
	if recorded != domain.VerificationQuorum {
		t.Fatalf("late validation must not insert a record, got %d", recorded)
	}
}

func TestIncidentRepo_SubmitValidation_ConcurrentSingleVerification(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())
	inc := seedIncident(t, repo, 1)

	const validators = 8

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		verified int
	)

	for i := 0; i < validators; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			res, err := repo.SubmitValidation(context.Background(), inc.ID, userID)
			if err != nil {
				t.Errorf("validation by %d: %v", userID, err)
				return
			}
			if res.JustVerified {
				mu.Lock()
				verified++
				mu.Unlock()
			}
		}(int64(i + 2))
	}
	wg.Wait()

	if verified != 1 {
		t.Fatalf("exactly one validator must observe the verification, got %d", verified)
	}

	got, err := repo.Get(context.Background(), inc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != domain.IncidentVerified {
		t.Fatalf("expected verificado, got %s", got.State)
	}
	if got.ValidationsCount != domain.VerificationQuorum {
		t.Fatalf("count must freeze at the quorum, got %d", got.ValidationsCount)
	}
}

func TestIncidentRepo_SubmitValidation_ConcurrentSameUserOneWins(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())
	inc := seedIncident(t, repo, 1)

	const attempts = 4

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, dup    int
		unexpected []error
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.SubmitValidation(context.Background(), inc.ID, 2)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, e.ErrDuplicateValidation):
				dup++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	if len(unexpected) > 0 {
		t.Fatalf("unexpected errors: %v", unexpected)
	}
	if ok != 1 || dup != attempts-1 {
		t.Fatalf("expected 1 success and %d duplicates, got ok=%d dup=%d", attempts-1, ok, dup)
	}

	got, _ := repo.Get(context.Background(), inc.ID)
	if got.ValidationsCount != 1 {
		t.Fatalf("same user races must count once, got %d", got.ValidationsCount)
	}
}

func TestIncidentRepo_ListActive_ExcludesArchived(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())

	a := seedIncident(t, repo, 1)
	b := seedIncident(t, repo, 2)

	if _, err := testPool.Exec(context.Background(),
		`UPDATE incidentes SET estado = $2 WHERE id = $1`, b.ID, domain.IncidentArchived,
	); err != nil {
		t.Fatalf("archive: %v", err)
	}

	list, err := repo.ListActive(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("archived incidents must be excluded: %+v", list)
	}
}

func TestIncidentRepo_ListActiveInBox_FiltersByCoordinates(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())

	inside := seedIncident(t, repo, 1)

	outside := &domain.Incident{
		Type:        "trancon",
		Description: "lejos",
		Lat:         10.0,
		Lng:         -70.0,
		Severity:    domain.SeverityLow,
		OwnerID:     2,
	}
	if err := repo.Create(context.Background(), outside); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := repo.ListActiveInBox(context.Background(), 4.6, 4.7, -74.1, -74.0)
	if err != nil {
		t.Fatalf("ListActiveInBox: %v", err)
	}
	if len(list) != 1 || list[0].ID != inside.ID {
		t.Fatalf("expected only the incident inside the box: %+v", list)
	}
}
