package user

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"recipehub/domain"
	"recipehub/entities"
	"recipehub/pkg/jwt"
	"recipehub/pkg/subscription"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq int64

type fakeS3 struct {
	deleted []string
}

func (f *fakeS3) UploadFile(fileName string, data []byte, contentType string, folder string, allowedTypes ...string) (string, error) {
	return fmt.Sprintf("%s/%s", folder, fileName), nil
}

func (f *fakeS3) DeleteFile(objectKey string) error {
	f.deleted = append(f.deleted, objectKey)
	return nil
}

func (f *fakeS3) GetPublicLinkKey(objectKey string) string {
	return "https://cdn.test/" + objectKey
}

func (f *fakeS3) GetObjectKeyFromLink(link string) string {
	return strings.TrimPrefix(link, "https://cdn.test/")
}

func newTestService(t *testing.T) (UserService, *gorm.DB, *fakeS3) {
	t.Helper()

	dsn := fmt.Sprintf("file:user_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}, &entities.Subscription{}))

	s3 := &fakeS3{}
	service := NewUserService(
		NewUserRepository(db),
		subscription.NewSubscriptionRepository(db),
		jwt.NewJWTService(),
		s3,
	)
	return service, db, s3
}

func registerRequest(username string) domain.RegisterRequest {
	return domain.RegisterRequest{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: "Test",
		LastName:  "User",
		Password:  "password123",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	service, _, _ := newTestService(t)

	res, err := service.Register(context.Background(), registerRequest("alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Username)
	assert.NotEmpty(t, res.ID)

	login, err := service.Login(context.Background(), domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.Register(context.Background(), registerRequest("alice"))
	require.NoError(t, err)

	dup := registerRequest("bob")
	dup.Email = "alice@example.com"
	_, err = service.Register(context.Background(), dup)
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
}

func TestRegister_UsernameTaken(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.Register(context.Background(), registerRequest("alice"))
	require.NoError(t, err)

	dup := registerRequest("alice")
	dup.Email = "other@example.com"
	_, err = service.Register(context.Background(), dup)
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestLogin_WrongCredentials(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.Register(context.Background(), registerRequest("alice"))
	require.NoError(t, err)

	_, err = service.Login(context.Background(), domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "not-the-password",
	})
	assert.ErrorIs(t, err, domain.ErrWrongCredentials)

	_, err = service.Login(context.Background(), domain.LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, domain.ErrWrongCredentials)
}

func TestGetProfile_SubscriptionFlag(t *testing.T) {
	service, db, _ := newTestService(t)

	alice, err := service.Register(context.Background(), registerRequest("alice"))
	require.NoError(t, err)
	bob, err := service.Register(context.Background(), registerRequest("bob"))
	require.NoError(t, err)

	aliceID := uuid.MustParse(alice.ID)
	bobID := uuid.MustParse(bob.ID)
	require.NoError(t, db.Create(&entities.Subscription{
		ID:       uuid.New(),
		UserID:   aliceID,
		AuthorID: bobID,
	}).Error)

	seen, err := service.GetProfile(context.Background(), bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, seen.IsSubscribed)

	anonymous, err := service.GetProfile(context.Background(), bob.ID, "")
	require.NoError(t, err)
	assert.False(t, anonymous.IsSubscribed)

	self, err := service.GetProfile(context.Background(), bob.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, self.IsSubscribed)

	_, err = service.GetProfile(context.Background(), uuid.NewString(), "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUpdateAndDeleteAvatar(t *testing.T) {
	service, _, s3 := newTestService(t)

	alice, err := service.Register(context.Background(), registerRequest("alice"))
	require.NoError(t, err)

	avatar := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png bytes"))
	res, err := service.UpdateAvatar(context.Background(), domain.UpdateAvatarRequest{Avatar: avatar}, alice.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Avatar, "https://cdn.test/avatars/"))

	_, err = service.UpdateAvatar(context.Background(), domain.UpdateAvatarRequest{Avatar: "not-a-data-uri"}, alice.ID)
	assert.ErrorIs(t, err, domain.ErrMissingAvatar)

	require.NoError(t, service.DeleteAvatar(context.Background(), alice.ID))
	require.Len(t, s3.deleted, 1)
	assert.True(t, strings.HasPrefix(s3.deleted[0], "avatars/"))

	err = service.DeleteAvatar(context.Background(), alice.ID)
	assert.ErrorIs(t, err, domain.ErrAvatarNotFound)
}
