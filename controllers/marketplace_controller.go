package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gpodo/models"
	"gpodo/utils"
)

type MarketplaceController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewMarketplaceController(db *gorm.DB) *MarketplaceController {
	return &MarketplaceController{
		DB:     db,
		Logger: logrus.WithField("component", "marketplace"),
	}
}

type createServiceRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Category    string `json:"category" validate:"max=80"`
	PricePoints int    `json:"price_points" validate:"required,min=1,max=1000000"`
}

// CreateService lists a service. Only suppliers and freelancers sell.
func (mc *MarketplaceController) CreateService(c *fiber.Ctx) error {
	user := currentUser(c)
	if user.Role != models.UserRoleSupplier && user.Role != models.UserRoleFreelancer {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only suppliers and freelancers can list services",
		})
	}

	var req createServiceRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	service := models.UserService{
		SellerID:    user.ID,
		Title:       utils.SanitizeText(req.Title),
		Description: utils.SanitizeText(req.Description),
		Category:    utils.SanitizeText(req.Category),
		PricePoints: req.PricePoints,
		IsActive:    true,
	}
	if service.Title == "" {
		return badRequest(c, "title is required")
	}

	if err := mc.DB.WithContext(c.UserContext()).Create(&service).Error; err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Service created",
		"service": service,
	})
}

func (mc *MarketplaceController) ListServices(c *fiber.Ctx) error {
	page, limit, offset := utils.ParsePagination(c)

	query := mc.DB.WithContext(c.UserContext()).Model(&models.UserService{}).Where("is_active = ?", true)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if sellerID := utils.ParseUint(c.Query("seller_id")); sellerID != 0 {
		query = query.Where("seller_id = ?", sellerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondError(c, err)
	}
	var services []models.UserService
	if err := query.Preload("Seller", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "country", "role")
	}).Order("created_at DESC").Limit(limit).Offset(offset).Find(&services).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(utils.PaginatedResponse{Data: services, Total: total, Page: page, Limit: limit})
}

func (mc *MarketplaceController) GetService(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid service ID")
	}
	var service models.UserService
	if err := mc.DB.WithContext(c.UserContext()).First(&service, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, ErrServiceNotFound)
		}
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"service": service})
}

type purchaseServiceRequest struct {
	ServiceID uint `json:"service_id" validate:"required"`
	BuyerID   uint `json:"buyer_id"`
}

// PurchaseService is the purchase_service RPC. Debit, credit, purchase
// row and both journal entries commit together or not at all.
func (mc *MarketplaceController) PurchaseService(c *fiber.Ctx) error {
	var req purchaseServiceRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	buyerID := currentUserID(c)
	if req.BuyerID != 0 && req.BuyerID != buyerID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "buyer_id must be the authenticated user",
		})
	}

	var purchase models.ServicePurchase
	var balance int
	err := mc.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var service models.UserService
		if err := tx.Where("id = ? AND is_active = ?", req.ServiceID, true).First(&service).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrServiceNotFound
			}
			return err
		}
		if service.SellerID == buyerID {
			return ErrOwnService
		}

		purchase = models.ServicePurchase{
			ServiceID:   service.ID,
			BuyerID:     buyerID,
			SellerID:    service.SellerID,
			PricePoints: service.PricePoints,
			Status:      "completed",
		}
		if err := tx.Create(&purchase).Error; err != nil {
			return err
		}

		debit, err := utils.AdjustPoints(tx, buyerID, -service.PricePoints, models.PointsReasonPurchase, &purchase.ID)
		if err != nil {
			return err
		}
		balance = debit.BalanceAfter
		_, err = utils.AdjustPoints(tx, service.SellerID, service.PricePoints, models.PointsReasonSale, &purchase.ID)
		return err
	})
	if err != nil {
		utils.ServicePurchases.WithLabelValues(purchaseOutcome(err)).Inc()
		return respondError(c, err)
	}

	utils.ServicePurchases.WithLabelValues("completed").Inc()
	mc.Logger.WithFields(logrus.Fields{
		"purchase_id": purchase.ID,
		"service_id":  purchase.ServiceID,
		"buyer_id":    buyerID,
		"points":      purchase.PricePoints,
	}).Info("service purchased")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":     true,
		"purchase":    purchase,
		"new_balance": balance,
	})
}

func purchaseOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, ErrOwnService):
		return "own_service"
	case errors.Is(err, ErrServiceNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// ListPurchases lists what the caller bought, or sold with ?as=seller.
func (mc *MarketplaceController) ListPurchases(c *fiber.Ctx) error {
	column := "buyer_id"
	if c.Query("as") == "seller" {
		column = "seller_id"
	}
	var purchases []models.ServicePurchase
	if err := mc.DB.WithContext(c.UserContext()).
		Where(column+" = ?", currentUserID(c)).
		Order("created_at DESC").
		Find(&purchases).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"purchases": purchases})
}

// PointsHistory returns the caller's balance and journal.
func (mc *MarketplaceController) PointsHistory(c *fiber.Ctx) error {
	user := currentUser(c)
	page, limit, offset := utils.ParsePagination(c)

	query := mc.DB.WithContext(c.UserContext()).Model(&models.PointTransaction{}).Where("user_id = ?", user.ID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondError(c, err)
	}
	var entries []models.PointTransaction
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return respondError(c, err)
	}

	var balance int
	if err := mc.DB.WithContext(c.UserContext()).Model(&models.User{}).
		Where("id = ?", user.ID).Select("points").Scan(&balance).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"balance":      balance,
		"transactions": utils.PaginatedResponse{Data: entries, Total: total, Page: page, Limit: limit},
	})
}
