package recipe

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"recipehub/domain"
	"recipehub/entities"
	"recipehub/pkg/catalog"
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

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:recipe_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)

	require.NoError(t, db.AutoMigrate(
		&entities.User{},
		&entities.Subscription{},
		&entities.Tag{},
		&entities.Ingredient{},
		&entities.Recipe{},
		&entities.RecipeIngredient{},
		&entities.Favorite{},
		&entities.Cart{},
	))
	return db
}

func newTestService(t *testing.T) (RecipeService, *gorm.DB, *fakeS3) {
	t.Helper()

	db := setupTestDB(t)
	s3 := &fakeS3{}
	service := NewRecipeService(
		NewRecipeRepository(db),
		catalog.NewCatalogRepository(db),
		subscription.NewSubscriptionRepository(db),
		s3,
		rand.Reader,
	)
	return service, db, s3
}

func seedUser(t *testing.T, db *gorm.DB, username string) *entities.User {
	t.Helper()

	user := &entities.User{
		ID:       uuid.New(),
		Email:    username + "@example.com",
		Username: username,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedTag(t *testing.T, db *gorm.DB, name, slug string) *entities.Tag {
	t.Helper()

	tag := &entities.Tag{ID: uuid.New(), Name: name, Slug: slug}
	require.NoError(t, db.Create(tag).Error)
	return tag
}

func seedIngredient(t *testing.T, db *gorm.DB, name, unit string) *entities.Ingredient {
	t.Helper()

	ingredient := &entities.Ingredient{ID: uuid.New(), Name: name, MeasurementUnit: unit}
	require.NoError(t, db.Create(ingredient).Error)
	return ingredient
}

func testImage() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png bytes"))
}

func validCreateRequest(tagID, ingredientID string) domain.CreateRecipeRequest {
	return domain.CreateRecipeRequest{
		Name:        "Pancakes",
		Text:        "Mix and fry.",
		CookingTime: 20,
		Image:       testImage(),
		Tags:        []string{tagID},
		Ingredients: []domain.RecipeIngredientRequest{
			{ID: ingredientID, Amount: 100},
		},
	}
}

func TestCreateRecipe(t *testing.T) {
	service, db, _ := newTestService(t)
	author := seedUser(t, db, "author")
	tag := seedTag(t, db, "Breakfast", "breakfast")
	flour := seedIngredient(t, db, "flour", "g")

	res, err := service.CreateRecipe(context.Background(), validCreateRequest(tag.ID.String(), flour.ID.String()), author.ID.String())
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", res.Name)
	assert.Equal(t, 20, res.CookingTime)
	assert.Equal(t, author.ID.String(), res.Author.ID)
	require.Len(t, res.Tags, 1)
	assert.Equal(t, "breakfast", res.Tags[0].Slug)
	require.Len(t, res.Ingredients, 1)
	assert.Equal(t, "flour", res.Ingredients[0].Name)
	assert.Equal(t, "g", res.Ingredients[0].MeasurementUnit)
	assert.Equal(t, 100, res.Ingredients[0].Amount)
	assert.True(t, strings.HasPrefix(res.Image, "https://cdn.test/recipes/"))
}

func TestCreateRecipe_CompositionRules(t *testing.T) {
	service, db, _ := newTestService(t)
	author := seedUser(t, db, "author")
	tag := seedTag(t, db, "Breakfast", "breakfast")
	flour := seedIngredient(t, db, "flour", "g")

	base := func() domain.CreateRecipeRequest {
		return validCreateRequest(tag.ID.String(), flour.ID.String())
	}

	tests := []struct {
		name    string
		mutate  func(*domain.CreateRecipeRequest)
		wantErr error
	}{
		{
			name:    "no ingredients",
			mutate:  func(r *domain.CreateRecipeRequest) { r.Ingredients = nil },
			wantErr: domain.ErrEmptyIngredients,
		},
		{
			name: "duplicate ingredient",
			mutate: func(r *domain.CreateRecipeRequest) {
				r.Ingredients = append(r.Ingredients, domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 50})
			},
			wantErr: domain.ErrDuplicateIngredient,
		},
		{
			name:    "zero amount",
			mutate:  func(r *domain.CreateRecipeRequest) { r.Ingredients[0].Amount = 0 },
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "no tags",
			mutate:  func(r *domain.CreateRecipeRequest) { r.Tags = nil },
			wantErr: domain.ErrEmptyTags,
		},
		{
			name:    "duplicate tag",
			mutate:  func(r *domain.CreateRecipeRequest) { r.Tags = append(r.Tags, tag.ID.String()) },
			wantErr: domain.ErrDuplicateTag,
		},
		{
			name:    "zero cooking time",
			mutate:  func(r *domain.CreateRecipeRequest) { r.CookingTime = 0 },
			wantErr: domain.ErrInvalidCookingTime,
		},
		{
			name:    "missing image",
			mutate:  func(r *domain.CreateRecipeRequest) { r.Image = "" },
			wantErr: domain.ErrMissingImage,
		},
		{
			name:    "unknown tag",
			mutate:  func(r *domain.CreateRecipeRequest) { r.Tags = []string{uuid.NewString()} },
			wantErr: domain.ErrTagNotFound,
		},
		{
			name: "unknown ingredient",
			mutate: func(r *domain.CreateRecipeRequest) {
				r.Ingredients = []domain.RecipeIngredientRequest{{ID: uuid.NewString(), Amount: 10}}
			},
			wantErr: domain.ErrIngredientNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mutate(&req)

			_, err := service.CreateRecipe(context.Background(), req, author.ID.String())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUpdateRecipe_ReplacesComposition(t *testing.T) {
	service, db, _ := newTestService(t)
	author := seedUser(t, db, "author")
	breakfast := seedTag(t, db, "Breakfast", "breakfast")
	dinner := seedTag(t, db, "Dinner", "dinner")
	flour := seedIngredient(t, db, "flour", "g")
	sugar := seedIngredient(t, db, "sugar", "g")

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(breakfast.ID.String(), flour.ID.String()), author.ID.String())
	require.NoError(t, err)

	updated, err := service.UpdateRecipe(context.Background(), created.ID, domain.UpdateRecipeRequest{
		Name:        "Sugar pancakes",
		Text:        "Sweeter.",
		CookingTime: 30,
		Tags:        []string{dinner.ID.String()},
		Ingredients: []domain.RecipeIngredientRequest{
			{ID: sugar.ID.String(), Amount: 25},
		},
	}, author.ID.String())
	require.NoError(t, err)

	assert.Equal(t, "Sugar pancakes", updated.Name)
	assert.Equal(t, 30, updated.CookingTime)
	require.Len(t, updated.Tags, 1)
	assert.Equal(t, "dinner", updated.Tags[0].Slug)
	require.Len(t, updated.Ingredients, 1)
	assert.Equal(t, "sugar", updated.Ingredients[0].Name)

	// Omitting the image keeps the stored one.
	assert.Equal(t, created.Image, updated.Image)

	var lineItems int64
	require.NoError(t, db.Model(&entities.RecipeIngredient{}).Where("recipe_id = ?", created.ID).Count(&lineItems).Error)
	assert.EqualValues(t, 1, lineItems)
}

func TestUpdateRecipe_OnlyAuthor(t *testing.T) {
	service, db, _ := newTestService(t)
	author := seedUser(t, db, "author")
	intruder := seedUser(t, db, "intruder")
	tag := seedTag(t, db, "Breakfast", "breakfast")
	flour := seedIngredient(t, db, "flour", "g")

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(tag.ID.String(), flour.ID.String()), author.ID.String())
	require.NoError(t, err)

	req := domain.UpdateRecipeRequest{
		Name:        "Hijacked",
		Text:        "nope",
		CookingTime: 5,
		Tags:        []string{tag.ID.String()},
		Ingredients: []domain.RecipeIngredientRequest{{ID: flour.ID.String(), Amount: 1}},
	}

	_, err = service.UpdateRecipe(context.Background(), created.ID, req, intruder.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotRecipeOwner)

	err = service.DeleteRecipe(context.Background(), created.ID, intruder.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotRecipeOwner)
}

func TestUpdateRecipe_NotFound(t *testing.T) {
	service, db, _ := newTestService(t)
	author := seedUser(t, db, "author")
	tag := seedTag(t, db, "Breakfast", "breakfast")
	flour := seedIngredient(t, db, "flour", "g")

	req := domain.UpdateRecipeRequest{
		Name:        "Ghost",
		Text:        "none",
		CookingTime: 5,
		Tags:        []string{tag.ID.String()},
		Ingredients: []domain.RecipeIngredientRequest{{ID: flour.ID.String(), Amount: 1}},
	}

	_, err := service.UpdateRecipe(context.Background(), uuid.NewString(), req, author.ID.String())
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)
}

func TestDeleteRecipe_Cascades(t *testing.T) {
	service, db, s3 := newTestService(t)
	author := seedUser(t, db, "author")
	fan := seedUser(t, db, "fan")
	tag := seedTag(t, db, "Breakfast", "breakfast")
	flour := seedIngredient(t, db, "flour", "g")

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(tag.ID.String(), flour.ID.String()), author.ID.String())
	require.NoError(t, err)

	_, err = service.AddFavorite(context.Background(), created.ID, fan.ID.String())
	require.NoError(t, err)
	_, err = service.AddToCart(context.Background(), created.ID, fan.ID.String())
	require.NoError(t, err)

	require.NoError(t, service.DeleteRecipe(context.Background(), created.ID, author.ID.String()))

	var favorites, carts, lineItems int64
	require.NoError(t, db.Model(&entities.Favorite{}).Where("recipe_id = ?", created.ID).Count(&favorites).Error)
	require.NoError(t, db.Model(&entities.Cart{}).Where("recipe_id = ?", created.ID).Count(&carts).Error)
	require.NoError(t, db.Model(&entities.RecipeIngredient{}).Where("recipe_id = ?", created.ID).Count(&lineItems).Error)
	assert.Zero(t, favorites)
	assert.Zero(t, carts)
	assert.Zero(t, lineItems)

	require.Len(t, s3.deleted, 1)
	assert.True(t, strings.HasPrefix(s3.deleted[0], "recipes/"))
}

func TestFavoriteToggle(t *testing.T) {
	service, db, _ := newTestService(t)
	author := seedUser(t, db, "author")
	fan := seedUser(t, db, "fan")
	tag := seedTag(t, db, "Breakfast", "breakfast")
	flour := seedIngredient(t, db, "flour", "g")

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(tag.ID.String(), flour.ID.String()), author.ID.String())
	require.NoError(t, err)

	summary, err := service.AddFavorite(context.Background(), created.ID, fan.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, summary.ID)
	assert.Equal(t, created.Name, summary.Name)

	_, err = service.AddFavorite(context.Background(), created.ID, fan.ID.String())
	assert.ErrorIs(t, err, domain.ErrAlreadyFavorited)

	detail, err := service.GetRecipeDetail(context.Background(), created.ID, fan.ID.String())
	require.NoError(t, err)
	assert.True(t, detail.IsFavorited)

	require.NoError(t, service.RemoveFavorite(context.Background(), created.ID, fan.ID.String()))
	assert.ErrorIs(t, service.RemoveFavorite(context.Background(), created.ID, fan.ID.String()), domain.ErrNotFavorited)

	_, err = service.AddFavorite(context.Background(), uuid.NewString(), fan.ID.String())
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)
}

func TestCartToggle(t *testing.T) {
	service, db, _ := newTestService(t)
	author := seedUser(t, db, "author")
	fan := seedUser(t, db, "fan")
	tag := seedTag(t, db, "Breakfast", "breakfast")
	flour := seedIngredient(t, db, "flour", "g")

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(tag.ID.String(), flour.ID.String()), author.ID.String())
	require.NoError(t, err)

	summary, err := service.AddToCart(context.Background(), created.ID, fan.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, summary.ID)

	_, err = service.AddToCart(context.Background(), created.ID, fan.ID.String())
	assert.ErrorIs(t, err, domain.ErrAlreadyInCart)

	detail, err := service.GetRecipeDetail(context.Background(), created.ID, fan.ID.String())
	require.NoError(t, err)
	assert.True(t, detail.IsInShoppingCart)

	require.NoError(t, service.RemoveFromCart(context.Background(), created.ID, fan.ID.String()))
	assert.ErrorIs(t, service.RemoveFromCart(context.Background(), created.ID, fan.ID.String()), domain.ErrNotInCart)
}

func TestDownloadShoppingCart_AggregatesByNameAndUnit(t *testing.T) {
	service, db, _ := newTestService(t)
	author := seedUser(t, db, "author")
	shopper := seedUser(t, db, "shopper")
	tag := seedTag(t, db, "Breakfast", "breakfast")
	flour := seedIngredient(t, db, "flour", "g")
	sugar := seedIngredient(t, db, "sugar", "g")

	first := validCreateRequest(tag.ID.String(), flour.ID.String())
	first.Ingredients = []domain.RecipeIngredientRequest{
		{ID: flour.ID.String(), Amount: 100},
		{ID: sugar.ID.String(), Amount: 10},
	}
	second := validCreateRequest(tag.ID.String(), flour.ID.String())
	second.Name = "Waffles"
	second.Ingredients = []domain.RecipeIngredientRequest{
		{ID: flour.ID.String(), Amount: 50},
	}

	one, err := service.CreateRecipe(context.Background(), first, author.ID.String())
	require.NoError(t, err)
	two, err := service.CreateRecipe(context.Background(), second, author.ID.String())
	require.NoError(t, err)

	_, err = service.AddToCart(context.Background(), one.ID, shopper.ID.String())
	require.NoError(t, err)
	_, err = service.AddToCart(context.Background(), two.ID, shopper.ID.String())
	require.NoError(t, err)

	report, err := service.DownloadShoppingCart(context.Background(), shopper.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "flour (g) - 150\nsugar (g) - 10\n", report)
}

func TestDownloadShoppingCart_EmptyCart(t *testing.T) {
	service, db, _ := newTestService(t)
	shopper := seedUser(t, db, "shopper")

	report, err := service.DownloadShoppingCart(context.Background(), shopper.ID.String())
	require.NoError(t, err)
	assert.Empty(t, report)
}

func TestGetShortLink_Idempotent(t *testing.T) {
	service, db, _ := newTestService(t)
	author := seedUser(t, db, "author")
	tag := seedTag(t, db, "Breakfast", "breakfast")
	flour := seedIngredient(t, db, "flour", "g")

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(tag.ID.String(), flour.ID.String()), author.ID.String())
	require.NoError(t, err)

	first, err := service.GetShortLink(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Len(t, first, shortLinkLength)

	second, err := service.GetShortLink(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveShortLink(t *testing.T) {
	service, db, _ := newTestService(t)
	author := seedUser(t, db, "author")
	tag := seedTag(t, db, "Breakfast", "breakfast")
	flour := seedIngredient(t, db, "flour", "g")

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(tag.ID.String(), flour.ID.String()), author.ID.String())
	require.NoError(t, err)

	token, err := service.GetShortLink(context.Background(), created.ID)
	require.NoError(t, err)

	recipeID, err := service.ResolveShortLink(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, recipeID)

	_, err = service.ResolveShortLink(context.Background(), "zzzzzz")
	assert.ErrorIs(t, err, domain.ErrShortLinkNotFound)
}

func TestGetRecipes_Filters(t *testing.T) {
	service, db, _ := newTestService(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	breakfast := seedTag(t, db, "Breakfast", "breakfast")
	dinner := seedTag(t, db, "Dinner", "dinner")
	flour := seedIngredient(t, db, "flour", "g")

	aliceReq := validCreateRequest(breakfast.ID.String(), flour.ID.String())
	aliceRecipe, err := service.CreateRecipe(context.Background(), aliceReq, alice.ID.String())
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	bobReq := validCreateRequest(dinner.ID.String(), flour.ID.String())
	bobReq.Name = "Stew"
	bobRecipe, err := service.CreateRecipe(context.Background(), bobReq, bob.ID.String())
	require.NoError(t, err)

	_, err = service.AddFavorite(context.Background(), bobRecipe.ID, alice.ID.String())
	require.NoError(t, err)

	all, count, err := service.GetRecipes(context.Background(), domain.RecipeQuery{Page: 1, Limit: 10}, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	require.Len(t, all, 2)
	assert.Equal(t, bobRecipe.ID, all[0].ID)

	byAuthor, count, err := service.GetRecipes(context.Background(), domain.RecipeQuery{Page: 1, Limit: 10, Author: alice.ID.String()}, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, aliceRecipe.ID, byAuthor[0].ID)

	byTag, count, err := service.GetRecipes(context.Background(), domain.RecipeQuery{Page: 1, Limit: 10, TagSlugs: []string{"dinner"}}, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.Len(t, byTag, 1)
	assert.Equal(t, bobRecipe.ID, byTag[0].ID)

	favorited, count, err := service.GetRecipes(context.Background(), domain.RecipeQuery{Page: 1, Limit: 10, IsFavorited: true}, alice.ID.String())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.Len(t, favorited, 1)
	assert.Equal(t, bobRecipe.ID, favorited[0].ID)
	assert.True(t, favorited[0].IsFavorited)

	paged, count, err := service.GetRecipes(context.Background(), domain.RecipeQuery{Page: 2, Limit: 1}, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	require.Len(t, paged, 1)
	assert.Equal(t, aliceRecipe.ID, paged[0].ID)
}
