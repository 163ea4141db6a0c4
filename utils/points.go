package utils

import (
	"errors"

	"gorm.io/gorm"

	"gpodo/models"
)

var ErrInsufficientPoints = errors.New("insufficient points")

// AdjustPoints moves a user's balance by delta and journals the movement.
// Debits are applied only while the balance covers them, so concurrent
// spending can never drive it negative. Run it inside a transaction.
func AdjustPoints(tx *gorm.DB, userID uint, delta int, reason string, ref *uint) (*models.PointTransaction, error) {
	query := tx.Model(&models.User{}).Where("id = ?", userID)
	if delta < 0 {
		query = query.Where("points >= ?", -delta)
	}
	res := query.Update("points", gorm.Expr("points + ?", delta))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if delta < 0 {
			return nil, ErrInsufficientPoints
		}
		return nil, gorm.ErrRecordNotFound
	}

	var balance int
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Select("points").Scan(&balance).Error; err != nil {
		return nil, err
	}

	entry := &models.PointTransaction{
		UserID:       userID,
		Amount:       delta,
		BalanceAfter: balance,
		Reason:       reason,
		ReferenceID:  ref,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}
