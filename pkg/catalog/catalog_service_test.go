package catalog

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"recipehub/domain"
	"recipehub/entities"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq int64

func newTestService(t *testing.T) (CatalogService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:catalog_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Tag{}, &entities.Ingredient{}))

	return NewCatalogService(NewCatalogRepository(db)), db
}

func TestGetTags(t *testing.T) {
	service, db := newTestService(t)
	require.NoError(t, db.Create(&entities.Tag{ID: uuid.New(), Name: "Breakfast", Slug: "breakfast"}).Error)
	require.NoError(t, db.Create(&entities.Tag{ID: uuid.New(), Name: "Dinner", Slug: "dinner"}).Error)

	tags, err := service.GetTags(context.Background())
	require.NoError(t, err)
	assert.Len(t, tags, 2)
}

func TestGetTagByID(t *testing.T) {
	service, db := newTestService(t)
	tag := &entities.Tag{ID: uuid.New(), Name: "Breakfast", Slug: "breakfast"}
	require.NoError(t, db.Create(tag).Error)

	res, err := service.GetTagByID(context.Background(), tag.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "breakfast", res.Slug)

	_, err = service.GetTagByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrTagNotFound)
}

func TestGetIngredients_NamePrefix(t *testing.T) {
	service, db := newTestService(t)
	require.NoError(t, db.Create(&entities.Ingredient{ID: uuid.New(), Name: "flour", MeasurementUnit: "g"}).Error)
	require.NoError(t, db.Create(&entities.Ingredient{ID: uuid.New(), Name: "flaxseed", MeasurementUnit: "g"}).Error)
	require.NoError(t, db.Create(&entities.Ingredient{ID: uuid.New(), Name: "sugar", MeasurementUnit: "g"}).Error)

	all, err := service.GetIngredients(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := service.GetIngredients(context.Background(), "fl")
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	none, err := service.GetIngredients(context.Background(), "zz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetIngredientByID(t *testing.T) {
	service, db := newTestService(t)
	ingredient := &entities.Ingredient{ID: uuid.New(), Name: "flour", MeasurementUnit: "g"}
	require.NoError(t, db.Create(ingredient).Error)

	res, err := service.GetIngredientByID(context.Background(), ingredient.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "flour", res.Name)
	assert.Equal(t, "g", res.MeasurementUnit)

	_, err = service.GetIngredientByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrIngredientNotFound)
}
