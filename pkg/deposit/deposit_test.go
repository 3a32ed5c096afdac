package deposit_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/assemble"
	"github.com/eclipse-pass/depositsvc/pkg/deposit"
	"github.com/eclipse-pass/depositsvc/pkg/errhandler"
	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/store/memstore"
	"github.com/eclipse-pass/depositsvc/pkg/transport"
)

// fakeAssembler returns a tiny real PackageStream so tests exercise the
// actual pkgstream writer/reader machinery instead of a stub.
type fakeAssembler struct {
	err error
}

func (a *fakeAssembler) Assemble(ctx context.Context, sub assemble.Submission, opts assemble.Options) (*pkgstream.PackageStream, error) {
	if a.err != nil {
		return nil, a.err
	}
	meta := pkgstream.Metadata{Name: "package.zip", PackageSpec: opts.PackageSpec, Archive: pkgstream.ArchiveZip}
	sources := []pkgstream.Source{{
		Name: "content.txt",
		Open: func() (io.ReadCloser, error) { return io.NopCloser(stringsReader("hello")), nil },
	}}
	return pkgstream.New(meta, sources, func(pkgstream.Resource) {}), nil
}

type stringsReaderType struct{ s string; i int }

func stringsReader(s string) io.Reader { return &stringsReaderType{s: s} }

func (r *stringsReaderType) Read(p []byte) (int, error) {
	if r.i >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.i:])
	r.i += n
	return n, nil
}

type fakeSession struct {
	resp transport.Response
	err  error
}

func (s *fakeSession) Send(ctx context.Context, stream *pkgstream.PackageStream, meta pkgstream.Metadata) (transport.Response, error) {
	rc, err := stream.Open(ctx)
	if err == nil {
		io.Copy(io.Discard, rc)
		rc.Close()
	}
	return s.resp, s.err
}

func (s *fakeSession) Close() error { return nil }

type fakeBinding struct {
	session *fakeSession
	openErr error
}

func (b *fakeBinding) Open(ctx context.Context, hints transport.Hints) (transport.Session, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.session, nil
}

type fakeResolver struct {
	binding deposit.RepositoryBinding
	err     error
}

func (r *fakeResolver) Resolve(ctx context.Context, repositoryKey string) (deposit.RepositoryBinding, error) {
	return r.binding, r.err
}

type fakeLoader struct{ err error }

func (l *fakeLoader) Load(ctx context.Context, sub *store.Submission) (assemble.Submission, error) {
	if l.err != nil {
		return assemble.Submission{}, l.err
	}
	return assemble.Submission{ID: sub.ID}, nil
}

type recordingHandler struct {
	handled []error
}

func (h *recordingHandler) Handle(ctx context.Context, err error) {
	h.handled = append(h.handled, err)
}

func seedFixture(t *testing.T, rs store.RecordStore) (sub *store.Submission, repo *store.Repository, dep *store.Deposit) {
	t.Helper()
	ctx := t.Context()

	repo = store.NewRepository("JScholarship", "jscholarship")
	repoID, err := rs.Create(ctx, repo)
	require.NoError(t, err)
	repo.ID = repoID

	sub = store.NewSubmission([]string{repoID}, nil, nil)
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)
	sub.ID = subID

	dep = store.NewDeposit(subID, repoID)
	depID, err := rs.Create(ctx, dep)
	require.NoError(t, err)
	dep.ID = depID

	return sub, repo, dep
}

func TestRun_SuccessWithStatusRefMarksSubmitted(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	sub, repo, dep := seedFixture(t, rs)

	binding := deposit.RepositoryBinding{
		Assembler: &fakeAssembler{},
		Transport: &fakeBinding{session: &fakeSession{resp: transport.Response{Success: true, StatusRef: "https://repo.example/statement/1"}}},
	}
	handler := &recordingHandler{}
	runner := deposit.New(rs, &fakeResolver{binding: binding}, &fakeLoader{}, handler)

	err := runner.Run(ctx, deposit.Task{SubmissionID: sub.ID, DepositID: dep.ID, RepositoryID: repo.ID})
	require.NoError(t, err)
	require.Empty(t, handler.handled)

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, dep.ID)
	require.NoError(t, err)
	require.Equal(t, store.DepositSubmitted, reread.DepositStatus)
	require.Equal(t, "https://repo.example/statement/1", reread.DepositStatusRef)
	require.NotNil(t, reread.SubmittedAt)
}

func TestRun_SuccessWithoutStatusRefMarksAcceptedAndCreatesCopy(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	sub, repo, dep := seedFixture(t, rs)

	binding := deposit.RepositoryBinding{
		Assembler: &fakeAssembler{},
		Transport: &fakeBinding{session: &fakeSession{resp: transport.Response{Success: true, ExternalID: "/data/repo/package.zip"}}},
	}
	handler := &recordingHandler{}
	runner := deposit.New(rs, &fakeResolver{binding: binding}, &fakeLoader{}, handler)

	err := runner.Run(ctx, deposit.Task{SubmissionID: sub.ID, DepositID: dep.ID, RepositoryID: repo.ID})
	require.NoError(t, err)
	require.Empty(t, handler.handled)

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, dep.ID)
	require.NoError(t, err)
	require.Equal(t, store.DepositAccepted, reread.DepositStatus)
	require.NotNil(t, reread.ResolvedAt)

	ids, err := rs.FindByAttribute(ctx, store.KindRepositoryCopy, "deposit_id", dep.ID)
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

func TestRun_PreconditionNotArmableIsANoOp(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	sub, repo, dep := seedFixture(t, rs)

	dep.DepositStatus = store.DepositSubmitted
	require.NoError(t, rs.Update(ctx, dep))

	handler := &recordingHandler{}
	runner := deposit.New(rs, &fakeResolver{}, &fakeLoader{}, handler)

	err := runner.Run(ctx, deposit.Task{SubmissionID: sub.ID, DepositID: dep.ID, RepositoryID: repo.ID})
	require.NoError(t, err)
	require.Empty(t, handler.handled)

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, dep.ID)
	require.NoError(t, err)
	require.Equal(t, store.DepositSubmitted, reread.DepositStatus)
}

func TestRun_AssemblyFailureBubblesToErrorHandler(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	sub, repo, dep := seedFixture(t, rs)

	binding := deposit.RepositoryBinding{Assembler: &fakeAssembler{err: errors.New("bad checksum algorithm")}}
	handler := &recordingHandler{}
	runner := deposit.New(rs, &fakeResolver{binding: binding}, &fakeLoader{}, handler)

	err := runner.Run(ctx, deposit.Task{SubmissionID: sub.ID, DepositID: dep.ID, RepositoryID: repo.ID})
	require.Error(t, err)
	require.Len(t, handler.handled, 1)

	var depErr *errhandler.DepositError
	require.ErrorAs(t, handler.handled[0], &depErr)
	require.Equal(t, dep.ID, depErr.Deposit.ID)
}

func TestRun_TransportFailureFailsDepositViaErrorHandler(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	sub, repo, dep := seedFixture(t, rs)

	binding := deposit.RepositoryBinding{
		Assembler: &fakeAssembler{},
		Transport: &fakeBinding{session: &fakeSession{resp: transport.Response{Success: false, Err: errors.New("connection refused")}}},
	}

	// Use a real Handler here (rather than a recording stub) so this
	// test exercises the full bubble-to-CRI-fail path end to end.
	handler := errhandler.New(rs)
	runner := deposit.New(rs, &fakeResolver{binding: binding}, &fakeLoader{}, handler)

	err := runner.Run(ctx, deposit.Task{SubmissionID: sub.ID, DepositID: dep.ID, RepositoryID: repo.ID})
	require.Error(t, err)

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, dep.ID)
	require.NoError(t, err)
	require.Equal(t, store.DepositFailed, reread.DepositStatus)
	require.Contains(t, reread.FailureMessage, "connection refused")
}

func TestRun_TransportOpenFailureBubbles(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	sub, repo, dep := seedFixture(t, rs)

	binding := deposit.RepositoryBinding{
		Assembler: &fakeAssembler{},
		Transport: &fakeBinding{openErr: errors.New("dial tcp: no such host")},
	}
	handler := &recordingHandler{}
	runner := deposit.New(rs, &fakeResolver{binding: binding}, &fakeLoader{}, handler)

	err := runner.Run(ctx, deposit.Task{SubmissionID: sub.ID, DepositID: dep.ID, RepositoryID: repo.ID})
	require.Error(t, err)
	require.Len(t, handler.handled, 1)
}
