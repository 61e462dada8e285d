package notifier

import (
	"fmt"
	"log"
	"net/smtp"

	"dropwatch/config"
	"dropwatch/models"
	"dropwatch/repository"

	"github.com/jordan-wright/email"
)

// EmailNotifier delivers price drop notifications over SMTP. It implements
// the scheduler's Notifier collaborator: invoked at most once per triggering
// episode, and a delivery failure never rolls back the fired alert.
type EmailNotifier struct {
	cfg         *config.Config
	productRepo *repository.ProductRepository
	alertRepo   *repository.AlertRepository
	userRepo    *repository.UserRepository
}

func NewEmailNotifier(cfg *config.Config, productRepo *repository.ProductRepository, alertRepo *repository.AlertRepository, userRepo *repository.UserRepository) *EmailNotifier {
	return &EmailNotifier{
		cfg:         cfg,
		productRepo: productRepo,
		alertRepo:   alertRepo,
		userRepo:    userRepo,
	}
}

// Notify loads the product, alert, and owner and sends the price drop email.
func (n *EmailNotifier) Notify(notification models.PriceDropNotification) error {
	if n.cfg.SMTPUser == "" || n.cfg.SMTPPassword == "" {
		log.Printf("SMTP not configured, skipping notification for alert %d", notification.AlertID)
		return nil
	}

	product, err := n.productRepo.GetProduct(notification.ProductID)
	if err != nil {
		return fmt.Errorf("failed to load product %d: %v", notification.ProductID, err)
	}
	alert, err := n.alertRepo.GetAlert(notification.AlertID)
	if err != nil {
		return fmt.Errorf("failed to load alert %d: %v", notification.AlertID, err)
	}
	user, err := n.userRepo.GetUserByID(product.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user %d: %v", product.UserID, err)
	}

	name := product.Name
	if name == "" {
		name = "Product"
	}

	e := email.NewEmail()
	e.From = n.cfg.EmailFrom
	e.To = []string{user.Email}
	e.Subject = fmt.Sprintf("Price Drop Alert: %s", name)
	e.HTML = []byte(priceDropHTML(name, product.URL, product.ImageURL, product.Currency,
		notification.Price.StringFixed(2), alert.TargetPrice.StringFixed(2)))

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	auth := smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPassword, n.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send email to %s: %v", user.Email, err)
	}

	log.Printf("Price drop email sent to %s for product %d", user.Email, product.ID)
	return nil
}

func priceDropHTML(name, productURL, imageURL, currency, currentPrice, targetPrice string) string {
	imageTag := ""
	if imageURL != "" {
		imageTag = fmt.Sprintf(`<img src="%s" style="max-width: 200px; height: auto;" />`, imageURL)
	}

	return fmt.Sprintf(`
	<html>
		<body style="font-family: Arial, sans-serif; padding: 20px; background-color: #f4f4f4;">
			<div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 20px; border-radius: 10px;">
				<h2 style="color: #4CAF50;">Price Drop Alert!</h2>
				<p>Great news! The price has dropped on a product you're tracking.</p>

				<div style="margin: 20px 0; padding: 15px; background-color: #f9f9f9; border-left: 4px solid #4CAF50;">
					<h3 style="margin-top: 0;">%s</h3>
					%s
					<p style="font-size: 24px; color: #4CAF50; margin: 10px 0;">
						<strong>%s %s</strong>
					</p>
					<p style="color: #666;">
						Target Price: %s %s
					</p>
				</div>

				<a href="%s" style="display: inline-block; padding: 10px 20px; background-color: #4CAF50; color: white; text-decoration: none; border-radius: 5px; margin-top: 10px;">
					View Product
				</a>

				<p style="margin-top: 20px; font-size: 12px; color: #999;">
					You received this email because you set up a price alert on our platform.
				</p>
			</div>
		</body>
	</html>`, name, imageTag, currency, currentPrice, currency, targetPrice, productURL)
}
