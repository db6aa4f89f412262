package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kmorrow0/edge-alert-bot/internal/models"
)

const firestoreCollection = "posts"

// FirestoreRepository is the remote backend. The post ID doubles as the
// document ID, so constraint semantics come straight from docRef.Create.
type FirestoreRepository struct {
	client     *firestore.Client
	collection string
}

func NewFirestore(ctx context.Context, projectID string) (*FirestoreRepository, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &FirestoreRepository{client: client, collection: firestoreCollection}, nil
}

func (r *FirestoreRepository) Close() error {
	return r.client.Close()
}

func (r *FirestoreRepository) Exists(ctx context.Context, id string) (bool, error) {
	doc, err := r.client.Collection(r.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("get post %s: %w", id, err)
	}
	return doc.Exists(), nil
}

func (r *FirestoreRepository) Create(ctx context.Context, post models.Post) error {
	// Fresh posts always start untagged no matter what the caller passed in.
	post.ContentTagged = false
	post.WatchlistMatches = nil
	post.AllMatches = nil
	// Same first-seen approximation as the embedded backend.
	if post.PostedAt.IsZero() {
		post.PostedAt = time.Now().UTC()
	}

	docRef := r.client.Collection(r.collection).Doc(post.ID)
	if _, err := docRef.Create(ctx, post); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("create post %s: %w", post.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("create post %s: %w", post.ID, err)
	}
	return nil
}

func (r *FirestoreRepository) Update(ctx context.Context, post models.Post) error {
	updates := []firestore.Update{
		{Path: "title", Value: post.Title},
		{Path: "description", Value: post.Description},
		{Path: "likes", Value: post.Likes},
		{Path: "comments", Value: post.Comments},
		{Path: "lastUpdated", Value: firestore.ServerTimestamp},
	}
	// A zero PostedAt means no tooltip was rendered; keep the stored
	// first-seen time in that case.
	if !post.PostedAt.IsZero() {
		updates = append(updates, firestore.Update{Path: "postedAt", Value: post.PostedAt})
	}

	docRef := r.client.Collection(r.collection).Doc(post.ID)
	_, err := docRef.Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("update post %s: %w", post.ID, ErrNotFound)
		}
		return fmt.Errorf("update post %s: %w", post.ID, err)
	}
	return nil
}

func (r *FirestoreRepository) ListFeed(ctx context.Context) ([]models.Post, error) {
	iter := r.client.Collection(r.collection).
		OrderBy("postedAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var posts []models.Post
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate feed: %w", err)
		}
		var p models.Post
		if err := doc.DataTo(&p); err != nil {
			return nil, fmt.Errorf("unmarshal post %s: %w", doc.Ref.ID, err)
		}
		p.ID = doc.Ref.ID
		p.WatchlistMatches = models.NormalizeTickers(p.WatchlistMatches)
		p.AllMatches = models.NormalizeTickers(p.AllMatches)
		posts = append(posts, p)
	}
	return posts, nil
}

func (r *FirestoreRepository) ListUntagged(ctx context.Context) ([]models.Post, error) {
	iter := r.client.Collection(r.collection).
		Where("contentTagged", "==", false).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var posts []models.Post
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate untagged posts: %w", err)
		}
		var p models.Post
		if err := doc.DataTo(&p); err != nil {
			return nil, fmt.Errorf("unmarshal post %s: %w", doc.Ref.ID, err)
		}
		// Same projection as the embedded backend.
		posts = append(posts, models.Post{
			ID:          doc.Ref.ID,
			Title:       p.Title,
			Link:        p.Link,
			Description: p.Description,
		})
	}
	return posts, nil
}

func (r *FirestoreRepository) MarkTagged(ctx context.Context, id string, watchlistMatches, allMatches []string) error {
	docRef := r.client.Collection(r.collection).Doc(id)
	_, err := docRef.Update(ctx, []firestore.Update{
		{Path: "contentTagged", Value: true},
		{Path: "watchlistMatches", Value: models.NormalizeTickers(watchlistMatches)},
		{Path: "allMatches", Value: models.NormalizeTickers(allMatches)},
		{Path: "lastUpdated", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("mark post %s tagged: %w", id, ErrNotFound)
		}
		return fmt.Errorf("mark post %s tagged: %w", id, err)
	}
	return nil
}
