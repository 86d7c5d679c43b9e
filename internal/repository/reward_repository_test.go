package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrotwars/carrotwars/internal/models"
)

func createTestReward(t *testing.T, repo *RewardRepository, relationID uint, status string) *models.Reward {
	t.Helper()

	reward := &models.Reward{
		RelationID: relationID,
		Title:      "movie night",
		Price:      10,
		Status:     status,
	}
	require.NoError(t, repo.Create(reward))
	return reward
}

func TestRewardRepository_Filters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRewardRepository(db)

	relation := createTestRelation(t, db, 0)
	purchasable := createTestReward(t, repo, relation.ID, models.RewardStatusAccepted)
	createTestReward(t, repo, relation.ID, models.RewardStatusBought)

	owned, err := repo.OwnedBy(relation.OwnerID)
	require.NoError(t, err)
	require.Len(t, owned, 1, "only purchasable rewards are listed")
	assert.Equal(t, purchasable.ID, owned[0].ID)

	assigned, err := repo.AssignedTo(relation.QuesterID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, relation.QuesterID, assigned[0].Relation.QuesterID, "relation is preloaded")

	all, err := repo.ListForUser(relation.OwnerID)
	require.NoError(t, err)
	assert.Len(t, all, 2, "visibility scope includes bought rewards")

	none, err := repo.ListForUser(99999)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRewardRepository_GetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRewardRepository(db)

	relation := createTestRelation(t, db, 0)
	created := createTestReward(t, repo, relation.ID, models.RewardStatusAccepted)

	reward, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, reward.Title)
	assert.Equal(t, relation.Owner.Username, reward.Relation.Owner.Username)
	assert.True(t, reward.IsPurchasable())

	_, err = repo.GetByID(99999)
	assert.Error(t, err)
}

func TestRewardRepository_UpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRewardRepository(db)

	relation := createTestRelation(t, db, 0)
	reward := createTestReward(t, repo, relation.ID, models.RewardStatusAccepted)

	require.NoError(t, repo.UpdateStatus(reward.ID, models.RewardStatusAccepted, models.RewardStatusBought))

	got, err := repo.GetByID(reward.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RewardStatusBought, got.Status)
	assert.False(t, got.IsPurchasable())

	// A second purchase from the same starting status loses the race and
	// changes nothing.
	err = repo.UpdateStatus(reward.ID, models.RewardStatusAccepted, models.RewardStatusBought)
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestRewardRepository_InvalidateByRelation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRewardRepository(db)

	relation := createTestRelation(t, db, 0)
	purchasable := createTestReward(t, repo, relation.ID, models.RewardStatusAccepted)
	bought := createTestReward(t, repo, relation.ID, models.RewardStatusBought)

	require.NoError(t, repo.InvalidateByRelation(relation.ID))

	got, err := repo.GetByID(purchasable.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RewardStatusDeleted, got.Status)

	got, err = repo.GetByID(bought.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RewardStatusBought, got.Status, "bought rewards stay bought")
}
