package recipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"recipehub/domain"
	"recipehub/entities"
	"recipehub/internal/utils"
	"recipehub/internal/utils/storage"
	"recipehub/pkg/catalog"
	"recipehub/pkg/subscription"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bounded retry for the unique-constraint race on short-link persistence.
const maxShortLinkAttempts = 5

type (
	RecipeService interface {
		CreateRecipe(ctx context.Context, req domain.CreateRecipeRequest, userID string) (domain.RecipeResponse, error)
		UpdateRecipe(ctx context.Context, recipeID string, req domain.UpdateRecipeRequest, userID string) (domain.RecipeResponse, error)
		DeleteRecipe(ctx context.Context, recipeID, userID string) error
		GetRecipes(ctx context.Context, q domain.RecipeQuery, viewerID string) ([]domain.RecipeResponse, int64, error)
		GetRecipeDetail(ctx context.Context, recipeID, viewerID string) (domain.RecipeResponse, error)

		AddFavorite(ctx context.Context, recipeID, userID string) (domain.RecipeSummaryResponse, error)
		RemoveFavorite(ctx context.Context, recipeID, userID string) error
		AddToCart(ctx context.Context, recipeID, userID string) (domain.RecipeSummaryResponse, error)
		RemoveFromCart(ctx context.Context, recipeID, userID string) error

		DownloadShoppingCart(ctx context.Context, userID string) (string, error)

		GetShortLink(ctx context.Context, recipeID string) (string, error)
		ResolveShortLink(ctx context.Context, token string) (string, error)
	}

	recipeService struct {
		recipeRepository       RecipeRepository
		catalogRepository      catalog.CatalogRepository
		subscriptionRepository subscription.SubscriptionRepository
		s3                     storage.AwsS3
		linkRand               io.Reader
	}
)

func NewRecipeService(
	recipeRepository RecipeRepository,
	catalogRepository catalog.CatalogRepository,
	subscriptionRepository subscription.SubscriptionRepository,
	s3 storage.AwsS3,
	linkRand io.Reader,
) RecipeService {
	return &recipeService{
		recipeRepository:       recipeRepository,
		catalogRepository:      catalogRepository,
		subscriptionRepository: subscriptionRepository,
		s3:                     s3,
		linkRand:               linkRand,
	}
}

// validateComposition enforces the composition invariants before any write:
// line items non-empty and pairwise distinct with positive amounts, tags
// non-empty and pairwise distinct, cooking time positive.
func validateComposition(ingredients []domain.RecipeIngredientRequest, tags []string, cookingTime int) error {
	if len(ingredients) == 0 {
		return domain.ErrEmptyIngredients
	}
	seenIngredients := make(map[string]struct{}, len(ingredients))
	for _, item := range ingredients {
		if _, ok := seenIngredients[item.ID]; ok {
			return domain.ErrDuplicateIngredient
		}
		seenIngredients[item.ID] = struct{}{}
		if item.Amount <= 0 {
			return domain.ErrInvalidAmount
		}
	}

	if len(tags) == 0 {
		return domain.ErrEmptyTags
	}
	seenTags := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if _, ok := seenTags[tag]; ok {
			return domain.ErrDuplicateTag
		}
		seenTags[tag] = struct{}{}
	}

	if cookingTime <= 0 {
		return domain.ErrInvalidCookingTime
	}
	return nil
}

func (s *recipeService) resolveTags(ctx context.Context, ids []string) ([]*entities.Tag, error) {
	tags, err := s.catalogRepository.GetTagsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(tags) != len(ids) {
		return nil, domain.ErrTagNotFound
	}
	return tags, nil
}

func (s *recipeService) resolveLineItems(ctx context.Context, reqs []domain.RecipeIngredientRequest) ([]*entities.RecipeIngredient, error) {
	ids := make([]string, 0, len(reqs))
	for _, item := range reqs {
		ids = append(ids, item.ID)
	}

	ingredients, err := s.catalogRepository.GetIngredientsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(ingredients) != len(reqs) {
		return nil, domain.ErrIngredientNotFound
	}

	items := make([]*entities.RecipeIngredient, 0, len(reqs))
	for _, item := range reqs {
		ingredientID, err := uuid.Parse(item.ID)
		if err != nil {
			return nil, domain.ErrParseUUID
		}
		items = append(items, &entities.RecipeIngredient{
			ID:           uuid.New(),
			IngredientID: ingredientID,
			Amount:       item.Amount,
		})
	}
	return items, nil
}

func (s *recipeService) uploadImage(image string) (string, error) {
	data, contentType, ext, err := utils.ParseImageDataURI(image)
	if err != nil {
		return "", domain.ErrMissingImage
	}

	fileName := fmt.Sprintf("%s.%s", uuid.New().String(), ext)
	objectKey, err := s.s3.UploadFile(fileName, data, contentType, "recipes", storage.AllowImage...)
	if err != nil {
		return "", err
	}
	return s.s3.GetPublicLinkKey(objectKey), nil
}

func (s *recipeService) CreateRecipe(ctx context.Context, req domain.CreateRecipeRequest, userID string) (domain.RecipeResponse, error) {
	if err := validateComposition(req.Ingredients, req.Tags, req.CookingTime); err != nil {
		return domain.RecipeResponse{}, err
	}
	if req.Image == "" {
		return domain.RecipeResponse{}, domain.ErrMissingImage
	}

	tags, err := s.resolveTags(ctx, req.Tags)
	if err != nil {
		return domain.RecipeResponse{}, err
	}
	items, err := s.resolveLineItems(ctx, req.Ingredients)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	authorID, err := uuid.Parse(userID)
	if err != nil {
		return domain.RecipeResponse{}, domain.ErrParseUUID
	}

	imageURL, err := s.uploadImage(req.Image)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	recipe := &entities.Recipe{
		ID:          uuid.New(),
		AuthorID:    authorID,
		Name:        req.Name,
		ImageURL:    imageURL,
		Text:        req.Text,
		CookingTime: req.CookingTime,
		Tags:        tags,
		Timestamp: entities.Timestamp{
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
	}

	if err := s.recipeRepository.CreateRecipe(ctx, recipe, items); err != nil {
		return domain.RecipeResponse{}, err
	}

	created, err := s.recipeRepository.GetRecipeByID(ctx, recipe.ID.String())
	if err != nil {
		return domain.RecipeResponse{}, err
	}
	return s.assembleRecipe(ctx, created, userID)
}

func (s *recipeService) UpdateRecipe(ctx context.Context, recipeID string, req domain.UpdateRecipeRequest, userID string) (domain.RecipeResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeResponse{}, err
	}
	if recipe.AuthorID.String() != userID {
		return domain.RecipeResponse{}, domain.ErrNotRecipeOwner
	}

	if err := validateComposition(req.Ingredients, req.Tags, req.CookingTime); err != nil {
		return domain.RecipeResponse{}, err
	}

	tags, err := s.resolveTags(ctx, req.Tags)
	if err != nil {
		return domain.RecipeResponse{}, err
	}
	items, err := s.resolveLineItems(ctx, req.Ingredients)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	imageURL := recipe.ImageURL
	if req.Image != "" {
		imageURL, err = s.uploadImage(req.Image)
		if err != nil {
			return domain.RecipeResponse{}, err
		}
		if recipe.ImageURL != "" {
			existingKey := s.s3.GetObjectKeyFromLink(recipe.ImageURL)
			if existingKey != "" {
				_ = s.s3.DeleteFile(existingKey)
			}
		}
	}

	updated := &entities.Recipe{
		ID:          recipe.ID,
		AuthorID:    recipe.AuthorID,
		Name:        req.Name,
		ImageURL:    imageURL,
		Text:        req.Text,
		CookingTime: req.CookingTime,
	}

	if err := s.recipeRepository.ReplaceComposition(ctx, updated, items, tags); err != nil {
		return domain.RecipeResponse{}, err
	}

	fresh, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		return domain.RecipeResponse{}, err
	}
	return s.assembleRecipe(ctx, fresh, userID)
}

func (s *recipeService) DeleteRecipe(ctx context.Context, recipeID, userID string) error {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRecipeNotFound
		}
		return err
	}
	if recipe.AuthorID.String() != userID {
		return domain.ErrNotRecipeOwner
	}

	if err := s.recipeRepository.DeleteRecipe(ctx, recipeID); err != nil {
		return err
	}

	if recipe.ImageURL != "" {
		objectKey := s.s3.GetObjectKeyFromLink(recipe.ImageURL)
		if objectKey != "" {
			_ = s.s3.DeleteFile(objectKey)
		}
	}
	return nil
}

func (s *recipeService) GetRecipes(ctx context.Context, q domain.RecipeQuery, viewerID string) ([]domain.RecipeResponse, int64, error) {
	recipes, count, err := s.recipeRepository.GetRecipes(ctx, q, viewerID)
	if err != nil {
		return nil, 0, err
	}

	result := make([]domain.RecipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		res, err := s.assembleRecipe(ctx, recipe, viewerID)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, res)
	}
	return result, count, nil
}

func (s *recipeService) GetRecipeDetail(ctx context.Context, recipeID, viewerID string) (domain.RecipeResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeResponse{}, err
	}
	return s.assembleRecipe(ctx, recipe, viewerID)
}

func (s *recipeService) AddFavorite(ctx context.Context, recipeID, userID string) (domain.RecipeSummaryResponse, error) {
	recipe, err := s.getRecipeForToggle(ctx, recipeID)
	if err != nil {
		return domain.RecipeSummaryResponse{}, err
	}

	present, err := s.recipeRepository.IsFavorited(ctx, userID, recipeID)
	if err != nil {
		return domain.RecipeSummaryResponse{}, err
	}
	if present {
		return domain.RecipeSummaryResponse{}, domain.ErrAlreadyFavorited
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.RecipeSummaryResponse{}, domain.ErrParseUUID
	}

	favorite := &entities.Favorite{
		ID:        uuid.New(),
		UserID:    userUUID,
		RecipeID:  recipe.ID,
		CreatedAt: time.Now(),
	}
	if err := s.recipeRepository.AddFavorite(ctx, favorite); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.RecipeSummaryResponse{}, domain.ErrAlreadyFavorited
		}
		return domain.RecipeSummaryResponse{}, err
	}

	return summaryOf(recipe), nil
}

func (s *recipeService) RemoveFavorite(ctx context.Context, recipeID, userID string) error {
	if _, err := s.getRecipeForToggle(ctx, recipeID); err != nil {
		return err
	}

	deleted, err := s.recipeRepository.RemoveFavorite(ctx, userID, recipeID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return domain.ErrNotFavorited
	}
	return nil
}

func (s *recipeService) AddToCart(ctx context.Context, recipeID, userID string) (domain.RecipeSummaryResponse, error) {
	recipe, err := s.getRecipeForToggle(ctx, recipeID)
	if err != nil {
		return domain.RecipeSummaryResponse{}, err
	}

	present, err := s.recipeRepository.IsInCart(ctx, userID, recipeID)
	if err != nil {
		return domain.RecipeSummaryResponse{}, err
	}
	if present {
		return domain.RecipeSummaryResponse{}, domain.ErrAlreadyInCart
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.RecipeSummaryResponse{}, domain.ErrParseUUID
	}

	cart := &entities.Cart{
		ID:        uuid.New(),
		UserID:    userUUID,
		RecipeID:  recipe.ID,
		CreatedAt: time.Now(),
	}
	if err := s.recipeRepository.AddToCart(ctx, cart); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.RecipeSummaryResponse{}, domain.ErrAlreadyInCart
		}
		return domain.RecipeSummaryResponse{}, err
	}

	return summaryOf(recipe), nil
}

func (s *recipeService) RemoveFromCart(ctx context.Context, recipeID, userID string) error {
	if _, err := s.getRecipeForToggle(ctx, recipeID); err != nil {
		return err
	}

	deleted, err := s.recipeRepository.RemoveFromCart(ctx, userID, recipeID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return domain.ErrNotInCart
	}
	return nil
}

// DownloadShoppingCart renders one line per distinct (name, unit) pair,
// amounts summed over every recipe in the cart. An empty cart yields an
// empty report, not an error.
func (s *recipeService) DownloadShoppingCart(ctx context.Context, userID string) (string, error) {
	items, err := s.recipeRepository.SumCartIngredients(ctx, userID)
	if err != nil {
		return "", err
	}

	var report strings.Builder
	for _, item := range items {
		fmt.Fprintf(&report, "%s (%s) - %d\n", item.Name, item.MeasurementUnit, item.Amount)
	}
	return report.String(), nil
}

func (s *recipeService) GetShortLink(ctx context.Context, recipeID string) (string, error) {
	recipe, err := s.getRecipeForToggle(ctx, recipeID)
	if err != nil {
		return "", err
	}
	if recipe.ShortLink != nil && *recipe.ShortLink != "" {
		return *recipe.ShortLink, nil
	}

	exists := func(token string) (bool, error) {
		return s.recipeRepository.ShortLinkExists(ctx, token)
	}

	for attempt := 0; attempt < maxShortLinkAttempts; attempt++ {
		token, err := generateShortLink(s.linkRand, exists)
		if err != nil {
			return "", err
		}
		if err := s.recipeRepository.SetShortLink(ctx, recipe.ID, token); err != nil {
			// Lost the race for this token; draw again.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return "", err
		}
		return token, nil
	}
	return "", fmt.Errorf("could not allocate a unique short link after %d attempts", maxShortLinkAttempts)
}

func (s *recipeService) ResolveShortLink(ctx context.Context, token string) (string, error) {
	recipe, err := s.recipeRepository.GetRecipeByShortLink(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrShortLinkNotFound
		}
		return "", err
	}
	return recipe.ID.String(), nil
}

func (s *recipeService) getRecipeForToggle(ctx context.Context, recipeID string) (*entities.Recipe, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRecipeNotFound
		}
		return nil, err
	}
	return recipe, nil
}

func summaryOf(recipe *entities.Recipe) domain.RecipeSummaryResponse {
	return domain.RecipeSummaryResponse{
		ID:          recipe.ID.String(),
		Name:        recipe.Name,
		Image:       recipe.ImageURL,
		CookingTime: recipe.CookingTime,
	}
}

// assembleRecipe builds the read-side view: nested tags, author profile and
// line items resolved to ingredient name and unit.
func (s *recipeService) assembleRecipe(ctx context.Context, recipe *entities.Recipe, viewerID string) (domain.RecipeResponse, error) {
	tags := make([]domain.TagResponse, 0, len(recipe.Tags))
	for _, tag := range recipe.Tags {
		tags = append(tags, catalog.TagToResponse(tag))
	}

	ingredients := make([]domain.RecipeIngredientResponse, 0, len(recipe.Ingredients))
	for _, item := range recipe.Ingredients {
		if item.Ingredient == nil {
			continue
		}
		ingredients = append(ingredients, domain.RecipeIngredientResponse{
			ID:              item.IngredientID.String(),
			Name:            item.Ingredient.Name,
			MeasurementUnit: item.Ingredient.MeasurementUnit,
			Amount:          item.Amount,
		})
	}

	author := domain.UserResponse{ID: recipe.AuthorID.String()}
	if recipe.Author != nil {
		author.Email = recipe.Author.Email
		author.Username = recipe.Author.Username
		author.FirstName = recipe.Author.FirstName
		author.LastName = recipe.Author.LastName
		author.Avatar = recipe.Author.AvatarURL
	}

	isFavorited := false
	isInCart := false
	if viewerID != "" {
		var err error
		if isFavorited, err = s.recipeRepository.IsFavorited(ctx, viewerID, recipe.ID.String()); err != nil {
			return domain.RecipeResponse{}, err
		}
		if isInCart, err = s.recipeRepository.IsInCart(ctx, viewerID, recipe.ID.String()); err != nil {
			return domain.RecipeResponse{}, err
		}
		if viewerID != recipe.AuthorID.String() {
			isSubscribed, err := s.subscriptionRepository.IsSubscribed(ctx, viewerID, recipe.AuthorID.String())
			if err != nil {
				return domain.RecipeResponse{}, err
			}
			author.IsSubscribed = isSubscribed
		}
	}

	return domain.RecipeResponse{
		ID:               recipe.ID.String(),
		Tags:             tags,
		Author:           author,
		Ingredients:      ingredients,
		Name:             recipe.Name,
		Image:            recipe.ImageURL,
		Text:             recipe.Text,
		CookingTime:      recipe.CookingTime,
		IsFavorited:      isFavorited,
		IsInShoppingCart: isInCart,
		CreatedAt:        recipe.CreatedAt,
	}, nil
}
