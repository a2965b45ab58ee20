// Package revisions keeps a git-backed snapshot history for each listing so
// moderators can see what changed between submissions.
package revisions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Snapshot is the listing state recorded at each revision.
type Snapshot struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	BusinessType string `json:"businessType"`
	Geography    string `json:"geography"`
	AskingPrice  int64  `json:"askingPrice"`
	TTMRevenue   int64  `json:"ttmRevenue"`
	TTMProfit    int64  `json:"ttmProfit"`
	BusinessURL  string `json:"businessUrl"`
	BrandName    string `json:"brandName"`
}

// ErrNoChanges is returned by Commit when the snapshot matches the current
// head.
var ErrNoChanges = errors.New("revisions: snapshot unchanged")

// RevisionInfo describes one entry in a listing's history.
type RevisionInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureListingRepo initializes the repository for a listing with a baseline
// snapshot. It is a no-op when the repository already exists.
func (s *Service) EnsureListingRepo(listingID string, initial Snapshot, author string) error {
	lock := s.listingLock(listingID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(listingID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	payload, err := json.MarshalIndent(initial, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal initial snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, "listing.json"), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write initial snapshot: %w", err)
	}
	if _, err := worktree.Add("listing.json"); err != nil {
		return fmt.Errorf("git add initial snapshot: %w", err)
	}
	hash, err := worktree.Commit("Create listing", &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return fmt.Errorf("commit initial snapshot: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// Commit records a new snapshot on the listing's history.
func (s *Service) Commit(listingID string, snapshot Snapshot, author, message string) (RevisionInfo, error) {
	lock := s.listingLock(listingID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(listingID))
	if err != nil {
		return RevisionInfo{}, fmt.Errorf("open repo: %w", err)
	}

	if head, err := repo.Head(); err == nil {
		if headCommit, err := repo.CommitObject(head.Hash()); err == nil {
			if current, err := readSnapshotFromCommit(headCommit); err == nil && !HasChanges(current, snapshot) {
				return RevisionInfo{}, ErrNoChanges
			}
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return RevisionInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return RevisionInfo{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, "listing.json"), append(payload, '\n'), 0o644); err != nil {
		return RevisionInfo{}, fmt.Errorf("write listing.json: %w", err)
	}

	if _, err := worktree.Add("listing.json"); err != nil {
		return RevisionInfo{}, fmt.Errorf("git add snapshot: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return RevisionInfo{}, fmt.Errorf("commit snapshot: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return RevisionInfo{}, fmt.Errorf("read commit object: %w", err)
	}

	return toRevisionInfo(commitObj), nil
}

// History returns the most recent revisions, newest first.
func (s *Service) History(listingID string, limit int) ([]RevisionInfo, error) {
	lock := s.listingLock(listingID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(listingID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]RevisionInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevisionInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// GetSnapshotByHash loads the snapshot recorded at the given revision.
func (s *Service) GetSnapshotByHash(listingID, hash string) (Snapshot, error) {
	lock := s.listingLock(listingID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(listingID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("open repo: %w", err)
	}

	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return Snapshot{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readSnapshotFromCommit(commitObj)
}

func (s *Service) repoPath(listingID string) string {
	return filepath.Join(s.baseDir, listingID)
}

func (s *Service) listingLock(listingID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[listingID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[listingID] = lock
	return lock
}

func readSnapshotFromCommit(commitObj *object.Commit) (Snapshot, error) {
	file, err := commitObj.File("listing.json")
	if err != nil {
		return Snapshot{}, fmt.Errorf("load listing.json from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot bytes: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode commit snapshot: %w", err)
	}
	return snapshot, nil
}

// DiffFields summarizes which fields differ between two snapshots.
func DiffFields(from, to Snapshot) []map[string]string {
	type pair struct {
		field  string
		before string
		after  string
	}
	pairs := []pair{
		{field: "title", before: from.Title, after: to.Title},
		{field: "description", before: from.Description, after: to.Description},
		{field: "businessType", before: from.BusinessType, after: to.BusinessType},
		{field: "geography", before: from.Geography, after: to.Geography},
		{field: "askingPrice", before: fmt.Sprintf("%d", from.AskingPrice), after: fmt.Sprintf("%d", to.AskingPrice)},
		{field: "ttmRevenue", before: fmt.Sprintf("%d", from.TTMRevenue), after: fmt.Sprintf("%d", to.TTMRevenue)},
		{field: "ttmProfit", before: fmt.Sprintf("%d", from.TTMProfit), after: fmt.Sprintf("%d", to.TTMProfit)},
		{field: "businessUrl", before: from.BusinessURL, after: to.BusinessURL},
		{field: "brandName", before: from.BrandName, after: to.BrandName},
	}
	result := make([]map[string]string, 0)
	for _, item := range pairs {
		if item.before == item.after {
			continue
		}
		result = append(result, map[string]string{
			"field":  item.field,
			"before": item.before,
			"after":  item.after,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i]["field"] < result[j]["field"]
	})
	return result
}

// HasChanges reports whether two snapshots differ at all.
func HasChanges(from, to Snapshot) bool {
	return from != to
}

func toRevisionInfo(commitObj *object.Commit) RevisionInfo {
	return RevisionInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func signature(author string) *object.Signature {
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@local.connectcapital.dev", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
