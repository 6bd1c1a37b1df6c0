package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/topicsloop/topicsloop/internal/domain"
	"github.com/topicsloop/topicsloop/internal/repository"
)

// In-memory fakes shared by the engine tests. Each fake implements the
// narrow interfaces the services declare, backed by plain maps.

type memPosts struct {
	posts map[uint]*domain.Post
	// additional[postID] holds auto-assigned category ids, separate from the
	// declared AdditionalCategories on the post itself.
	additional map[uint][]uint
}

func newMemPosts(posts ...*domain.Post) *memPosts {
	m := &memPosts{
		posts:      make(map[uint]*domain.Post),
		additional: make(map[uint][]uint),
	}
	for _, p := range posts {
		m.posts[p.ID] = p
	}
	return m
}

func (m *memPosts) GetByID(_ context.Context, id uint) (*domain.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *memPosts) GetByIDs(_ context.Context, ids []uint) ([]domain.Post, error) {
	var out []domain.Post
	for _, id := range ids {
		if p, ok := m.posts[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memPosts) ListByAuthor(_ context.Context, authorID uint, limit int) ([]domain.Post, error) {
	var out []domain.Post
	for _, id := range m.sortedIDs() {
		p := m.posts[id]
		if p.AuthorID == authorID {
			out = append(out, *p)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memPosts) ListRecent(_ context.Context, limit int) ([]domain.Post, error) {
	var out []domain.Post
	for _, id := range m.sortedIDs() {
		out = append(out, *m.posts[id])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memPosts) ListByCategorySet(_ context.Context, categoryIDs []uint, limit int) ([]domain.Post, error) {
	want := make(map[uint]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		want[id] = true
	}
	var out []domain.Post
	for _, id := range m.sortedIDs() {
		p := m.posts[id]
		for _, cid := range p.CategoryIDs() {
			if want[cid] {
				out = append(out, *p)
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memPosts) ListWithoutAdditionalCategories(_ context.Context, limit int) ([]domain.Post, error) {
	var out []domain.Post
	for _, id := range m.sortedIDs() {
		p := m.posts[id]
		if len(p.AdditionalCategories) == 0 && len(m.additional[id]) == 0 {
			out = append(out, *p)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memPosts) HasAdditionalCategory(_ context.Context, postID, categoryID uint) (bool, error) {
	p, ok := m.posts[postID]
	if ok {
		for _, c := range p.AdditionalCategories {
			if c.ID == categoryID {
				return true, nil
			}
		}
	}
	for _, id := range m.additional[postID] {
		if id == categoryID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPosts) AddAdditionalCategory(_ context.Context, postID, categoryID uint) error {
	m.additional[postID] = append(m.additional[postID], categoryID)
	return nil
}

func (m *memPosts) sortedIDs() []uint {
	ids := make([]uint, 0, len(m.posts))
	for id := range m.posts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type memCategories struct {
	categories map[uint]*domain.Category
	paths      map[uint]string
}

func newMemCategories(categories ...*domain.Category) *memCategories {
	m := &memCategories{
		categories: make(map[uint]*domain.Category),
		paths:      make(map[uint]string),
	}
	for _, c := range categories {
		m.categories[c.ID] = c
		m.paths[c.ID] = c.Name
	}
	return m
}

func (m *memCategories) GetByID(_ context.Context, id uint) (*domain.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (m *memCategories) Path(_ context.Context, id uint) (string, error) {
	path, ok := m.paths[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return path, nil
}

func (m *memCategories) ListAll(_ context.Context) ([]domain.Category, error) {
	ids := make([]uint, 0, len(m.categories))
	for id := range m.categories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]domain.Category, len(ids))
	for i, id := range ids {
		out[i] = *m.categories[id]
	}
	return out, nil
}

func (m *memCategories) ListByLevel(_ context.Context, level int, parentID *uint) ([]domain.Category, error) {
	all, _ := m.ListAll(context.Background())
	var out []domain.Category
	for _, c := range all {
		if c.Level != level {
			continue
		}
		if parentID != nil && (c.ParentID == nil || *c.ParentID != *parentID) {
			continue
		}
		if parentID == nil && c.ParentID != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memCategories) Ancestors(_ context.Context, id uint) ([]domain.Category, error) {
	var out []domain.Category
	c, ok := m.categories[id]
	for ok && c.ParentID != nil {
		c, ok = m.categories[*c.ParentID]
		if ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCategories) DescendantIDs(_ context.Context, id uint) ([]uint, error) {
	ids := []uint{id}
	for i := 0; i < len(ids); i++ {
		for _, c := range m.categories {
			if c.ParentID != nil && *c.ParentID == ids[i] {
				ids = append(ids, c.ID)
			}
		}
	}
	return ids, nil
}

type memUsers struct {
	users map[uint]*domain.UserProfile
	// favorites[userID] holds level-0 favorite category ids.
	favorites map[uint][]uint
}

func newMemUsers(users ...*domain.UserProfile) *memUsers {
	m := &memUsers{
		users:     make(map[uint]*domain.UserProfile),
		favorites: make(map[uint][]uint),
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id uint) (*domain.UserProfile, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) FavoriteCategoryIDs(_ context.Context, userID uint, _ int) ([]uint, error) {
	return m.favorites[userID], nil
}

func (m *memUsers) ListAll(_ context.Context) ([]domain.UserProfile, error) {
	ids := make([]uint, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]domain.UserProfile, len(ids))
	for i, id := range ids {
		out[i] = *m.users[id]
	}
	return out, nil
}

type memRecords struct {
	postEmbeddings     map[uint]*domain.PostEmbedding
	userEmbeddings     map[uint]*domain.UserEmbedding
	categoryEmbeddings map[uint]*domain.CategoryEmbedding
	// primaryCategory[postID] drives ListPostEmbeddingsByPrimaryCategory.
	primaryCategory map[uint]uint
}

func newMemRecords() *memRecords {
	return &memRecords{
		postEmbeddings:     make(map[uint]*domain.PostEmbedding),
		userEmbeddings:     make(map[uint]*domain.UserEmbedding),
		categoryEmbeddings: make(map[uint]*domain.CategoryEmbedding),
		primaryCategory:    make(map[uint]uint),
	}
}

func (m *memRecords) addPostEmbedding(postID, categoryID uint, vec domain.Vector, model string) {
	m.postEmbeddings[postID] = &domain.PostEmbedding{
		PostID:    postID,
		ModelName: model,
		Embedding: vec,
		Dimension: len(vec),
	}
	m.primaryCategory[postID] = categoryID
}

func (m *memRecords) GetPostEmbedding(_ context.Context, postID uint, _ string) (*domain.PostEmbedding, error) {
	e, ok := m.postEmbeddings[postID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (m *memRecords) UpsertPostEmbedding(_ context.Context, emb *domain.PostEmbedding) error {
	m.postEmbeddings[emb.PostID] = emb
	return nil
}

func (m *memRecords) GetUserEmbedding(_ context.Context, userID uint, _ string) (*domain.UserEmbedding, error) {
	e, ok := m.userEmbeddings[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (m *memRecords) UpsertUserEmbedding(_ context.Context, emb *domain.UserEmbedding) error {
	m.userEmbeddings[emb.UserID] = emb
	return nil
}

func (m *memRecords) GetCategoryEmbedding(_ context.Context, categoryID uint, _ string) (*domain.CategoryEmbedding, error) {
	e, ok := m.categoryEmbeddings[categoryID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (m *memRecords) UpsertCategoryEmbedding(_ context.Context, emb *domain.CategoryEmbedding) error {
	m.categoryEmbeddings[emb.CategoryID] = emb
	return nil
}

func (m *memRecords) ListCategoryEmbeddings(_ context.Context, model string) ([]domain.CategoryEmbedding, error) {
	ids := make([]uint, 0, len(m.categoryEmbeddings))
	for id := range m.categoryEmbeddings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []domain.CategoryEmbedding
	for _, id := range ids {
		if e := m.categoryEmbeddings[id]; e.ModelName == model {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memRecords) ListPostEmbeddingsByPrimaryCategory(_ context.Context, categoryID uint, _ string) ([]domain.PostEmbedding, error) {
	ids := make([]uint, 0, len(m.postEmbeddings))
	for id := range m.postEmbeddings {
		if m.primaryCategory[id] == categoryID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]domain.PostEmbedding, len(ids))
	for i, id := range ids {
		out[i] = *m.postEmbeddings[id]
	}
	return out, nil
}

func (m *memRecords) ListPostEmbeddingsByPostIDs(_ context.Context, postIDs []uint, _ string) ([]domain.PostEmbedding, error) {
	var out []domain.PostEmbedding
	for _, id := range postIDs {
		if e, ok := m.postEmbeddings[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

type memSimilarities struct {
	records map[string]*domain.PostSimilarity
}

func newMemSimilarities() *memSimilarities {
	return &memSimilarities{records: make(map[string]*domain.PostSimilarity)}
}

func simKey(sim *domain.PostSimilarity) string {
	return simPairKey(sim.Post1ID, sim.Post2ID, sim.Algorithm, sim.ModelName)
}

func simPairKey(a, b uint, algorithm domain.SimilarityAlgorithm, model string) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d/%d/%s/%s", a, b, algorithm, model)
}

func (m *memSimilarities) Upsert(_ context.Context, sim *domain.PostSimilarity) error {
	if err := sim.Validate(); err != nil {
		return err
	}
	sim.Normalize()
	m.records[simKey(sim)] = sim
	return nil
}

func (m *memSimilarities) ListForPost(_ context.Context, postID uint, algorithm domain.SimilarityAlgorithm, modelName string, threshold float64, limit int) ([]domain.PostSimilarity, error) {
	var out []domain.PostSimilarity
	for _, sim := range m.records {
		if sim.Post1ID != postID && sim.Post2ID != postID {
			continue
		}
		if sim.Algorithm != algorithm || sim.ModelName != modelName || sim.Score < threshold {
			continue
		}
		out = append(out, *sim)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSimilarities) DeleteForPost(_ context.Context, postID uint) error {
	for key, sim := range m.records {
		if sim.Post1ID == postID || sim.Post2ID == postID {
			delete(m.records, key)
		}
	}
	return nil
}

// memIndex fakes the ANN index with brute-force cosine over stored points.
type memIndex struct {
	points   map[uint][]float32
	searches int
	deletes  int
	failWith error
}

func newMemIndex() *memIndex {
	return &memIndex{points: make(map[uint][]float32)}
}

func (m *memIndex) Search(_ context.Context, vector []float32, topK int, _ *repository.SearchFilters) ([]repository.PostSearchResult, error) {
	m.searches++
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []repository.PostSearchResult
	for id, point := range m.points {
		out = append(out, repository.PostSearchResult{
			PostID: id,
			Score:  float32(Cosine(vector, point)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PostID < out[j].PostID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *memIndex) DeletePost(_ context.Context, postID uint) error {
	m.deletes++
	delete(m.points, postID)
	return nil
}
