// Package services содержит контроллер жизненного цикла подписок —
// единственную точку, через которую меняются статусы подписок
// и производный от них статус видимости магазина.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zoomarket/shop-subscriptions/internal/config"
	"github.com/zoomarket/shop-subscriptions/internal/lib/period"
	"github.com/zoomarket/shop-subscriptions/internal/lib/sl"
	"github.com/zoomarket/shop-subscriptions/internal/metrics"
	"github.com/zoomarket/shop-subscriptions/internal/models"
	"github.com/zoomarket/shop-subscriptions/internal/paymentprovider"
)

// SubscriptionRepository определяет методы хранилища, нужные контроллеру.
type SubscriptionRepository interface {
	// CreateShop регистрирует магазин со статусом pending_payment.
	CreateShop(ctx context.Context, shop models.Shop) error
	// ReadShop возвращает магазин по ID.
	ReadShop(ctx context.Context, id string) (*models.Shop, error)
	// CreateSubscription вставляет подписку, атомарно проверяя инвариант
	// "не более одной pending/active на магазин".
	CreateSubscription(ctx context.Context, sub models.Subscription) error
	// ApplyTransition записывает состояние подписки и проекцию статуса
	// магазина с оптимистичной проверкой версии.
	ApplyTransition(ctx context.Context, sub *models.Subscription, shopStatus models.ShopStatus) error
	// ReadSubscriptionByID возвращает подписку по ID.
	ReadSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error)
	// ReadSubscriptionByShopID возвращает текущую подписку магазина.
	ReadSubscriptionByShopID(ctx context.Context, shopID string) (*models.Subscription, error)
	// ReadSubscriptionBySessionRef возвращает подписку по ссылке платёжной сессии.
	ReadSubscriptionBySessionRef(ctx context.Context, sessionRef string) (*models.Subscription, error)
	// ListExpiryCandidates возвращает истёкшие active/cancelled подписки без
	// автопродления, а также подписки с автопродлением, чьё продление
	// не началось до stalledBefore.
	ListExpiryCandidates(ctx context.Context, now, stalledBefore time.Time) ([]*models.Subscription, error)
	// ListRenewalDue возвращает истёкшие активные подписки с автопродлением.
	ListRenewalDue(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	// ListGraceExpired возвращает продления с пропущенным крайним сроком оплаты.
	ListGraceExpired(ctx context.Context, now time.Time) ([]*models.Subscription, error)
}

// PaymentGateway описывает контракт платёжного шлюза.
// GetOutcome может возвращать unknown сколь угодно долго; контроллер
// обязан переживать повторные опросы без побочных эффектов.
type PaymentGateway interface {
	CreateSession(ctx context.Context, shopName string, plan models.Plan, amount int64) (*paymentprovider.Session, error)
	GetOutcome(ctx context.Context, sessionRef string) (paymentprovider.Outcome, error)
	ResolveSessionRef(ctx context.Context, paymentID string) (string, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// SubscriptionService реализует операции жизненного цикла подписки.
type SubscriptionService struct {
	repo    SubscriptionRepository
	gateway PaymentGateway
	cache   Cache
	cfg     config.Lifecycle
	log     *slog.Logger
	locks   *shopLocks
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, gateway PaymentGateway, cache Cache, cfg config.Lifecycle, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:    repo,
		gateway: gateway,
		cache:   cache,
		cfg:     cfg,
		log:     log,
		locks:   newShopLocks(),
	}
}

func cacheKey(shopID string) string {
	return fmt.Sprintf("subscription:shop:%s", shopID)
}

// RegisterShop регистрирует магазин маркетплейса. До подтверждения
// оплаты подписки магазин скрыт (pending_payment).
func (s *SubscriptionService) RegisterShop(ctx context.Context, ownerUID string, req models.DummyShop) (*models.Shop, error) {
	shop := models.Shop{
		ID:         uuid.NewString(),
		OwnerUID:   ownerUID,
		OwnerEmail: req.OwnerEmail,
		Name:       req.Name,
		Status:     models.ShopPendingPayment,
	}
	if err := s.repo.CreateShop(ctx, shop); err != nil {
		return nil, err
	}
	s.log.Info("registered new shop", slog.String("shop_id", shop.ID))
	return &shop, nil
}

// ownedShop возвращает магазин, если он принадлежит вызывающему.
// Чужой магазин неотличим от несуществующего.
func (s *SubscriptionService) ownedShop(ctx context.Context, shopID, ownerUID string) (*models.Shop, error) {
	shop, err := s.repo.ReadShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if shop.OwnerUID != ownerUID {
		return nil, models.ErrNotFound
	}
	return shop, nil
}

// Create создает подписку магазина: одна запись в хранилище, одна сессия
// оплаты у шлюза. Возвращает подписку и URL страницы оплаты.
// Если у магазина уже есть подписка в статусе pending или active,
// возвращает models.ErrConflict.
func (s *SubscriptionService) Create(ctx context.Context, ownerUID string, req models.DummySubscription) (*models.Subscription, string, error) {
	unlock := s.locks.Lock(req.ShopID)
	defer unlock()

	shop, err := s.ownedShop(ctx, req.ShopID, ownerUID)
	if err != nil {
		return nil, "", err
	}

	current, err := s.repo.ReadSubscriptionByShopID(ctx, req.ShopID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, "", err
	}
	if current != nil && (current.Status == models.SubscriptionPending || current.Status == models.SubscriptionActive) {
		return nil, "", models.ErrConflict
	}

	plan := models.Plan(req.Plan)
	amount := s.cfg.PlanPrice(req.Plan)

	session, err := s.gateway.CreateSession(ctx, shop.Name, plan, amount)
	if err != nil {
		metrics.GatewayErrors.Inc()
		return nil, "", err
	}

	sub := models.Subscription{
		ID:                uuid.NewString(),
		ShopID:            req.ShopID,
		Plan:              plan,
		Amount:            amount,
		Status:            models.SubscriptionPending,
		AutoRenew:         req.AutoRenew,
		AttemptsRemaining: s.cfg.PaymentAttempts,
		PaymentSessionRef: session.Ref,
		Version:           1,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, "", err
	}

	s.log.Info("created new subscription",
		slog.String("subscription_id", sub.ID), slog.String("shop_id", sub.ShopID))

	if err := s.cache.Invalidate(cacheKey(sub.ShopID)); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", cacheKey(sub.ShopID)), sl.Err(err))
	}
	return &sub, session.InitPoint, nil
}

// Read возвращает текущую подписку магазина, используя кеш или хранилище.
func (s *SubscriptionService) Read(ctx context.Context, ownerUID, shopID string) (*models.Subscription, error) {
	if _, err := s.ownedShop(ctx, shopID, ownerUID); err != nil {
		return nil, err
	}

	var result *models.Subscription
	key := cacheKey(shopID)
	found, err := s.cache.Get(key, &result)
	if err != nil {
		s.log.Warn("cache read failed", slog.String("key", key), sl.Err(err))
	}
	if found && result != nil {
		return result, nil
	}

	result, err = s.repo.ReadSubscriptionByShopID(ctx, shopID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(key, result, 5*time.Minute); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", key), sl.Err(err))
	}
	return result, nil
}

// CheckPayment сверяет состояние подписки с итогом платежа у шлюза.
// Операция идемпотентна: неизвестный итог, сбой шлюза или устаревшая
// сессия не меняют ничего, подтверждение и отклонение применяются
// не более одного раза.
func (s *SubscriptionService) CheckPayment(ctx context.Context, ownerUID, subscriptionID string) (*models.Subscription, error) {
	sub, err := s.repo.ReadSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedShop(ctx, sub.ShopID, ownerUID); err != nil {
		return nil, err
	}
	return s.reconcile(ctx, sub)
}

// ReconcileBySessionRef выполняет ту же сверку по ссылке платёжной сессии.
// Вызывается обработчиком webhook-уведомлений шлюза.
func (s *SubscriptionService) ReconcileBySessionRef(ctx context.Context, sessionRef string) error {
	sub, err := s.repo.ReadSubscriptionBySessionRef(ctx, sessionRef)
	if err != nil {
		return err
	}
	_, err = s.reconcile(ctx, sub)
	return err
}

// ReconcileByPaymentID выполняет сверку по ID платежа из webhook-уведомления:
// шлюз переводит ID платежа в ссылку сессии, дальше сверка та же.
// Для платежа без ссылки возвращает models.ErrNotFound.
func (s *SubscriptionService) ReconcileByPaymentID(ctx context.Context, paymentID string) error {
	sessionRef, err := s.gateway.ResolveSessionRef(ctx, paymentID)
	if err != nil {
		metrics.GatewayErrors.Inc()
		return err
	}
	if sessionRef == "" {
		return models.ErrNotFound
	}
	return s.ReconcileBySessionRef(ctx, sessionRef)
}

// reconcile опрашивает шлюз и применяет переход, если он есть.
func (s *SubscriptionService) reconcile(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	if sub.Status != models.SubscriptionPending {
		return sub, nil
	}

	sessionRef := sub.PaymentSessionRef
	outcome, err := s.gateway.GetOutcome(ctx, sessionRef)
	if err != nil {
		// Сбой шлюза восстановим: итог неизвестен, состояние не меняется.
		metrics.GatewayErrors.Inc()
		s.log.Warn("gateway outcome check failed", slog.String("subscription_id", sub.ID), sl.Err(err))
		return sub, nil
	}
	metrics.PaymentOutcomes.WithLabelValues(string(outcome)).Inc()
	if outcome == paymentprovider.OutcomeUnknown {
		return sub, nil
	}

	unlock := s.locks.Lock(sub.ShopID)
	defer unlock()

	// Перечитываем под блокировкой: конкурентная операция могла сменить
	// сессию или статус. Итог по устаревшей сессии трактуется как unknown.
	fresh, err := s.repo.ReadSubscriptionByID(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if fresh.PaymentSessionRef != sessionRef || fresh.Status != models.SubscriptionPending {
		return fresh, nil
	}
	sub = fresh

	next, changed := NextOnOutcome(sub.Status, outcome)
	if !changed {
		return sub, nil
	}

	now := time.Now()
	if next == models.SubscriptionActive {
		if sub.GraceUntil != nil && sub.EndDate != nil {
			// Подтверждено продление: период продлевается от прежней даты
			// окончания, бюджет повторных оплат обновляется.
			end := period.Extend(*sub.EndDate, now, s.cfg.PlanPeriodMonths)
			sub.EndDate = &end
			sub.GraceUntil = nil
			sub.AttemptsRemaining = s.cfg.PaymentAttempts
		} else {
			end := period.End(now, s.cfg.PlanPeriodMonths)
			sub.StartDate = &now
			sub.EndDate = &end
		}
	}
	// Отклонение не расходует бюджет попыток: его тратит только
	// явный вызов Retry.
	sub.Status = next

	if err := s.applyProjected(ctx, sub); err != nil {
		if errors.Is(err, models.ErrVersionConflict) {
			return s.repo.ReadSubscriptionByID(ctx, sub.ID)
		}
		return nil, err
	}

	s.log.Info("payment outcome applied",
		slog.String("subscription_id", sub.ID), slog.String("status", string(sub.Status)))
	return sub, nil
}

// Retry запускает повторную оплату после отклонённого платежа:
// расходует одну попытку из бюджета, создаёт новую сессию у шлюза
// и возвращает новый URL оплаты. Прежняя сессия вытесняется.
// Если платёж уже подтверждён, возвращает подписку без URL.
func (s *SubscriptionService) Retry(ctx context.Context, ownerUID, subscriptionID string) (*models.Subscription, string, error) {
	sub, err := s.repo.ReadSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, "", err
	}
	shop, err := s.ownedShop(ctx, sub.ShopID, ownerUID)
	if err != nil {
		return nil, "", err
	}

	unlock := s.locks.Lock(sub.ShopID)
	defer unlock()

	sub, err = s.repo.ReadSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, "", err
	}

	if sub.Status == models.SubscriptionActive {
		// Платёж разрешился, пока владелец нажимал retry.
		return sub, "", nil
	}
	if err := CheckRetry(sub); err != nil {
		return nil, "", err
	}

	session, err := s.gateway.CreateSession(ctx, shop.Name, sub.Plan, sub.Amount)
	if err != nil {
		// Бюджет попыток не тронут, состояние не изменилось.
		metrics.GatewayErrors.Inc()
		return nil, "", err
	}

	sub.AttemptsRemaining--
	sub.Status = models.SubscriptionPending
	sub.PaymentSessionRef = session.Ref

	if err := s.applyProjected(ctx, sub); err != nil {
		return nil, "", err
	}

	s.log.Info("payment retry started",
		slog.String("subscription_id", sub.ID),
		slog.Int("attempts_remaining", sub.AttemptsRemaining))
	return sub, session.InitPoint, nil
}

// Cancel отменяет активную подписку. Отмена вступает в силу с даты
// окончания: магазин остаётся видимым до неё, платёж у шлюза
// не отзывается. Без активной подписки возвращает models.ErrInvalidState.
func (s *SubscriptionService) Cancel(ctx context.Context, ownerUID, shopID string) (*models.Subscription, error) {
	if _, err := s.ownedShop(ctx, shopID, ownerUID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(shopID)
	defer unlock()

	sub, err := s.repo.ReadSubscriptionByShopID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if err := CheckCancel(sub); err != nil {
		return nil, err
	}

	sub.AutoRenew = false
	sub.Status = models.SubscriptionCancelled

	if err := s.applyProjected(ctx, sub); err != nil {
		return nil, err
	}

	s.log.Info("subscription cancelled", slog.String("subscription_id", sub.ID))
	return sub, nil
}

// ExpirySweep переводит в expired все подписки, чей срок прошёл,
// и запускает продление для активных подписок с автопродлением.
// Повторный запуск на тех же данных ничего не меняет.
// Возвращает события для сервиса уведомлений.
func (s *SubscriptionService) ExpirySweep(ctx context.Context, now time.Time) (expired, renewals []models.LifecycleEvent, err error) {
	due, err := s.repo.ListRenewalDue(ctx, now)
	if err != nil {
		return nil, nil, err
	}
	for _, sub := range due {
		ev, renewErr := s.renew(ctx, sub)
		if renewErr != nil {
			s.log.Error("failed to start renewal", slog.String("subscription_id", sub.ID), sl.Err(renewErr))
			continue
		}
		if ev != nil {
			renewals = append(renewals, *ev)
		}
	}

	// Автопродление, не начавшееся за весь грейс-период (например, шлюз
	// был недоступен все обходы подряд), истекает так же, как пропущенный
	// крайний срок оплаты: магазин не остаётся видимым бессрочно.
	candidates, err := s.repo.ListExpiryCandidates(ctx, now, now.Add(-s.cfg.GracePeriod))
	if err != nil {
		return nil, nil, err
	}
	graceMissed, err := s.repo.ListGraceExpired(ctx, now)
	if err != nil {
		return nil, nil, err
	}

	for _, sub := range append(candidates, graceMissed...) {
		ev, expireErr := s.expire(ctx, sub, now)
		if expireErr != nil {
			s.log.Error("failed to expire subscription", slog.String("subscription_id", sub.ID), sl.Err(expireErr))
			continue
		}
		if ev != nil {
			expired = append(expired, *ev)
		}
	}
	return expired, renewals, nil
}

// renew начинает продление: подписка уходит в pending, магазин скрывается
// до подтверждения оплаты, фиксируется крайний срок подтверждения.
func (s *SubscriptionService) renew(ctx context.Context, sub *models.Subscription) (*models.LifecycleEvent, error) {
	unlock := s.locks.Lock(sub.ShopID)
	defer unlock()

	fresh, err := s.repo.ReadSubscriptionByID(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if fresh.Status != models.SubscriptionActive || !fresh.AutoRenew || fresh.EndDate == nil {
		return nil, nil
	}
	sub = fresh

	shop, err := s.repo.ReadShop(ctx, sub.ShopID)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateSession(ctx, shop.Name, sub.Plan, sub.Amount)
	if err != nil {
		// Подписка остаётся активной, следующий обход попробует снова.
		metrics.GatewayErrors.Inc()
		return nil, err
	}

	grace := period.GraceDeadline(*sub.EndDate, s.cfg.GracePeriod)
	sub.Status = models.SubscriptionPending
	sub.PaymentSessionRef = session.Ref
	sub.GraceUntil = &grace

	if err := s.applyProjected(ctx, sub); err != nil {
		return nil, err
	}

	s.log.Info("renewal started", slog.String("subscription_id", sub.ID))
	return &models.LifecycleEvent{
		ShopID:     shop.ID,
		ShopName:   shop.Name,
		OwnerEmail: shop.OwnerEmail,
		Plan:       sub.Plan,
		EndDate:    sub.EndDate,
		InitPoint:  session.InitPoint,
	}, nil
}

// expire переводит подписку в expired, если она всё ещё кандидат.
func (s *SubscriptionService) expire(ctx context.Context, sub *models.Subscription, now time.Time) (*models.LifecycleEvent, error) {
	unlock := s.locks.Lock(sub.ShopID)
	defer unlock()

	fresh, err := s.repo.ReadSubscriptionByID(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	sub = fresh

	stillDue := (sub.Status == models.SubscriptionCancelled ||
		(sub.Status == models.SubscriptionActive && !sub.AutoRenew)) &&
		sub.EndDate != nil && sub.EndDate.Before(now)
	renewalStalled := sub.Status == models.SubscriptionActive && sub.AutoRenew &&
		sub.EndDate != nil && sub.EndDate.Add(s.cfg.GracePeriod).Before(now)
	// Отклонённое продление сохраняет grace_until: не повторённый платёж
	// истекает по тому же крайнему сроку, что и не подтверждённый.
	graceMissed := (sub.Status == models.SubscriptionPending || sub.Status == models.SubscriptionFailed) &&
		sub.GraceUntil != nil && sub.GraceUntil.Before(now)
	if !stillDue && !renewalStalled && !graceMissed {
		return nil, nil
	}

	sub.Status = models.SubscriptionExpired
	sub.GraceUntil = nil

	if err := s.applyProjected(ctx, sub); err != nil {
		return nil, err
	}
	metrics.SweepExpirations.Inc()

	shop, err := s.repo.ReadShop(ctx, sub.ShopID)
	if err != nil {
		return nil, err
	}
	s.log.Info("subscription expired", slog.String("subscription_id", sub.ID))
	return &models.LifecycleEvent{
		ShopID:     shop.ID,
		ShopName:   shop.Name,
		OwnerEmail: shop.OwnerEmail,
		Plan:       sub.Plan,
		EndDate:    sub.EndDate,
	}, nil
}

// applyProjected записывает переход вместе с проекцией статуса магазина
// и инвалидирует кеш.
func (s *SubscriptionService) applyProjected(ctx context.Context, sub *models.Subscription) error {
	shop, err := s.repo.ReadShop(ctx, sub.ShopID)
	if err != nil {
		return err
	}
	if err := s.repo.ApplyTransition(ctx, sub, ProjectShopStatus(sub.Status, shop.Status)); err != nil {
		return err
	}
	if err := s.cache.Invalidate(cacheKey(sub.ShopID)); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", cacheKey(sub.ShopID)), sl.Err(err))
	}
	return nil
}
