package medstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
)

const medicationsSubcollection = "medications"

// userDoc is the slice of the user document the engine reads. The client
// app owns the rest of the document.
type userDoc struct {
	NotificationTime *domain.TimeOfDay `firestore:"notificationTime"`
}

// FirestoreStore reads medications from users/{uid}/medications. Document
// IDs equal the medication name, which the identifier scheme already
// requires to be unique per user.
type FirestoreStore struct {
	client          *firestore.Client
	usersCollection string
}

func NewFirestoreStore(client *firestore.Client, usersCollection string) *FirestoreStore {
	return &FirestoreStore{
		client:          client,
		usersCollection: usersCollection,
	}
}

var _ domain.MedicationStore = (*FirestoreStore)(nil)

func (s *FirestoreStore) medications(userID string) *firestore.CollectionRef {
	return s.client.Collection(s.usersCollection).Doc(userID).Collection(medicationsSubcollection)
}

func (s *FirestoreStore) FetchAll(ctx context.Context, userID string) ([]domain.Medication, error) {
	var meds []domain.Medication

	iter := s.medications(userID).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate medications: %w", err)
		}

		var med domain.Medication
		if err := doc.DataTo(&med); err != nil {
			return nil, fmt.Errorf("failed to decode medication %s: %w", doc.Ref.ID, err)
		}
		med.UserID = userID
		meds = append(meds, med)
	}

	return meds, nil
}

func (s *FirestoreStore) Fetch(ctx context.Context, userID, name string) (*domain.Medication, error) {
	doc, err := s.medications(userID).Doc(name).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrMedicationNotFound
		}
		return nil, fmt.Errorf("failed to fetch medication: %w", err)
	}

	var med domain.Medication
	if err := doc.DataTo(&med); err != nil {
		return nil, fmt.Errorf("failed to decode medication %s: %w", name, err)
	}
	med.UserID = userID
	return &med, nil
}

func (s *FirestoreStore) FetchPreferredReminderTime(ctx context.Context, userID string) (domain.TimeOfDay, error) {
	doc, err := s.client.Collection(s.usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.TimeOfDay{}, domain.ErrPreferredTimeNotSet
		}
		return domain.TimeOfDay{}, fmt.Errorf("failed to fetch user document: %w", err)
	}

	var user userDoc
	if err := doc.DataTo(&user); err != nil {
		return domain.TimeOfDay{}, fmt.Errorf("failed to decode user document: %w", err)
	}
	if user.NotificationTime == nil {
		return domain.TimeOfDay{}, domain.ErrPreferredTimeNotSet
	}
	return *user.NotificationTime, nil
}

func (s *FirestoreStore) Save(ctx context.Context, med *domain.Medication) error {
	if _, err := s.medications(med.UserID).Doc(med.Name).Set(ctx, med); err != nil {
		return fmt.Errorf("failed to save medication: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, userID, name string) error {
	if _, err := s.medications(userID).Doc(name).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListUsers(ctx context.Context) ([]string, error) {
	var users []string

	iter := s.client.Collection(s.usersCollection).DocumentRefs(ctx)
	for {
		ref, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate users: %w", err)
		}
		users = append(users, ref.ID)
	}

	return users, nil
}

// Changes streams medication document changes across every user via a
// collection group snapshot listener. The channel closes when ctx is
// cancelled or the listener fails.
func (s *FirestoreStore) Changes(ctx context.Context) (<-chan domain.Change, error) {
	out := make(chan domain.Change)

	go func() {
		defer close(out)

		snapIter := s.client.CollectionGroup(medicationsSubcollection).Snapshots(ctx)
		defer snapIter.Stop()

		for {
			snap, err := snapIter.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					slog.ErrorContext(ctx, "medication snapshot listener failed",
						slog.String("error", err.Error()),
					)
				}
				return
			}

			for _, docChange := range snap.Changes {
				change, ok := s.toChange(ctx, docChange)
				if !ok {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *FirestoreStore) toChange(ctx context.Context, docChange firestore.DocumentChange) (domain.Change, bool) {
	userRef := docChange.Doc.Ref.Parent.Parent
	if userRef == nil {
		return domain.Change{}, false
	}
	userID := userRef.ID
	name := docChange.Doc.Ref.ID

	switch docChange.Kind {
	case firestore.DocumentRemoved:
		return domain.Change{
			Type:   domain.ChangeRemoved,
			UserID: userID,
			Name:   name,
		}, true
	case firestore.DocumentAdded, firestore.DocumentModified:
		var med domain.Medication
		if err := docChange.Doc.DataTo(&med); err != nil {
			slog.WarnContext(ctx, "skipping undecodable medication change",
				slog.String("user_id", userID),
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
			return domain.Change{}, false
		}
		med.UserID = userID

		changeType := domain.ChangeAdded
		if docChange.Kind == firestore.DocumentModified {
			changeType = domain.ChangeUpdated
		}
		return domain.Change{
			Type:       changeType,
			UserID:     userID,
			Name:       name,
			Medication: &med,
		}, true
	default:
		return domain.Change{}, false
	}
}
