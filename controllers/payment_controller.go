package controller

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/charge"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"gorm.io/gorm"

	"gpodo/config"
	"gpodo/models"
	"gpodo/utils"
)

func InitStripe() {
	stripe.Key = config.AppConfig.StripeSecretKey
}

// Payment statuses
const (
	PaymentRequiresMethod = "requires_payment_method"
	PaymentSucceeded      = "succeeded"
	PaymentFailed         = "failed"
)

type PaymentController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewPaymentController(db *gorm.DB) *PaymentController {
	return &PaymentController{
		DB:     db,
		Logger: logrus.WithField("component", "payments"),
	}
}

// ListPackages returns the points bundles on sale.
func (pc *PaymentController) ListPackages(c *fiber.Ctx) error {
	var packages []models.PointsPackage
	if err := pc.DB.WithContext(c.UserContext()).Order("points ASC").Find(&packages).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"packages": packages})
}

type PaymentRequest struct {
	PackageID uint `json:"package_id" validate:"required"`
}

// CreatePaymentIntent starts a points top-up for the caller.
func (pc *PaymentController) CreatePaymentIntent(c *fiber.Ctx) error {
	var req PaymentRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	user := currentUser(c)

	var pkg models.PointsPackage
	if err := pc.DB.WithContext(c.UserContext()).First(&pkg, req.PackageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Package not found"})
		}
		return respondError(c, err)
	}

	customerID, err := pc.getOrCreateStripeCustomer(user)
	if err != nil {
		utils.LogError("stripe_customer", err, map[string]interface{}{"user_id": user.ID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process payment",
		})
	}

	description := "Purchase of " + pkg.Name + " points package"
	pi, err := paymentintent.New(&stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(pkg.Price)),
		Currency: stripe.String(pkg.Currency),
		Customer: stripe.String(customerID),
		Metadata: map[string]string{
			"user_id":    strconv.Itoa(int(user.ID)),
			"package_id": strconv.Itoa(int(pkg.ID)),
		},
		Description: stripe.String(description),
	})
	if err != nil {
		utils.LogError("stripe_payment_intent", err, map[string]interface{}{
			"user_id":    user.ID,
			"package_id": pkg.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process payment",
		})
	}

	transaction := models.PaymentTransaction{
		UserID:                user.ID,
		PackageID:             &pkg.ID,
		Points:                pkg.Points,
		Amount:                pkg.Price,
		Currency:              pkg.Currency,
		PaymentStatus:         PaymentRequiresMethod,
		StripePaymentIntentID: pi.ID,
		Description:           description,
	}
	if err := pc.DB.WithContext(c.UserContext()).Create(&transaction).Error; err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"clientSecret":   pi.ClientSecret,
		"transaction_id": transaction.ID,
		"amount":         pkg.Price,
		"currency":       pkg.Currency,
		"points":         pkg.Points,
	})
}

// ListTransactions returns the caller's top-up history.
func (pc *PaymentController) ListTransactions(c *fiber.Ctx) error {
	var transactions []models.PaymentTransaction
	if err := pc.DB.WithContext(c.UserContext()).
		Preload("Package").
		Where("user_id = ?", currentUserID(c)).
		Order("created_at DESC").
		Find(&transactions).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"transactions": transactions})
}

// HandlePaymentWebhook handles Stripe webhook events. It is mounted
// without user auth; the Stripe signature is the credential.
func (pc *PaymentController) HandlePaymentWebhook(c *fiber.Ctx) error {
	event, err := utils.ConstructStripeEvent(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			utils.LogError("stripe_webhook_parse", err, map[string]interface{}{"event_id": event.ID})
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Error parsing payment intent",
			})
		}
		if event.Type == "payment_intent.payment_failed" {
			err = pc.markPaymentFailed(pi.ID, paymentFailure(&pi))
		} else {
			err = pc.creditPayment(pi.ID, paymentMethodType(&pi), latestCharge(&pi))
		}
	default:
		return c.SendStatus(fiber.StatusOK)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Transaction not found"})
	}
	if err != nil {
		utils.LogError("stripe_webhook_apply", err, map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update transaction",
		})
	}
	return c.SendStatus(fiber.StatusOK)
}

// creditPayment settles a top-up once. Stripe retries deliveries, so the
// status flip is conditional and a replay credits nothing.
func (pc *PaymentController) creditPayment(intentID, method string, ch *stripe.Charge) error {
	return pc.DB.Transaction(func(tx *gorm.DB) error {
		var transaction models.PaymentTransaction
		if err := tx.Where("stripe_payment_intent_id = ?", intentID).First(&transaction).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"payment_status": PaymentSucceeded,
			"payment_method": method,
		}
		if ch != nil {
			updates["stripe_charge_id"] = ch.ID
			updates["receipt_url"] = ch.ReceiptURL
		}
		res := tx.Model(&models.PaymentTransaction{}).
			Where("id = ? AND payment_status <> ?", transaction.ID, PaymentSucceeded).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			pc.Logger.WithField("payment_intent_id", intentID).Info("duplicate payment webhook ignored")
			return nil
		}

		if _, err := utils.AdjustPoints(tx, transaction.UserID, transaction.Points, models.PointsReasonTopUp, &transaction.ID); err != nil {
			return err
		}
		utils.LogEvent("points_top_up", map[string]interface{}{
			"user_id": transaction.UserID,
			"points":  transaction.Points,
		})
		return nil
	})
}

func (pc *PaymentController) markPaymentFailed(intentID, reason string) error {
	res := pc.DB.Model(&models.PaymentTransaction{}).
		Where("stripe_payment_intent_id = ? AND payment_status <> ?", intentID, PaymentSucceeded).
		Updates(map[string]interface{}{
			"payment_status": PaymentFailed,
			"description":    reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := pc.DB.Model(&models.PaymentTransaction{}).
			Where("stripe_payment_intent_id = ?", intentID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func paymentMethodType(pi *stripe.PaymentIntent) string {
	if pi.PaymentMethod == nil {
		return ""
	}
	return string(pi.PaymentMethod.Type)
}

func paymentFailure(pi *stripe.PaymentIntent) string {
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		return "Payment failed: " + pi.LastPaymentError.Msg
	}
	return "Payment failed"
}

// latestCharge fetches the receipt details of the intent's last charge.
func latestCharge(pi *stripe.PaymentIntent) *stripe.Charge {
	if pi.LatestCharge == nil {
		return nil
	}
	if pi.LatestCharge.ReceiptURL != "" {
		return pi.LatestCharge
	}
	ch, err := charge.Get(pi.LatestCharge.ID, nil)
	if err != nil {
		utils.LogError("stripe_charge_get", err, map[string]interface{}{"charge_id": pi.LatestCharge.ID})
		return pi.LatestCharge
	}
	return ch
}

func (pc *PaymentController) getOrCreateStripeCustomer(user *models.User) (string, error) {
	if user.StripeCustomerID != nil {
		return *user.StripeCustomerID, nil
	}

	cust, err := customer.New(&stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Name),
		Metadata: map[string]string{
			"user_id": strconv.Itoa(int(user.ID)),
		},
	})
	if err != nil {
		return "", err
	}

	user.StripeCustomerID = &cust.ID
	if err := pc.DB.Model(user).Update("stripe_customer_id", cust.ID).Error; err != nil {
		return "", err
	}
	return cust.ID, nil
}
