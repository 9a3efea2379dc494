package service

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
)

var (
	symbolPattern   = regexp.MustCompile(`^[A-Z0-9.\-]{1,20}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// HoldingInput 是创建或修改持仓的参数；修改时 nil 字段保持不变。
type HoldingInput struct {
	Symbol      *string
	Quantity    *float64
	AverageCost *float64
	Currency    *string
	Note        *string
}

// HoldingService 管理用户自己的持仓，不存在或不属于当前用户一律返回 ErrNotFound。
type HoldingService interface {
	Create(ctx context.Context, userID uint, in HoldingInput) (*model.Holding, error)
	List(ctx context.Context, userID uint) ([]model.Holding, error)
	Update(ctx context.Context, userID, holdingID uint, in HoldingInput) (*model.Holding, error)
	Delete(ctx context.Context, userID, holdingID uint) error
	// Summary 按币种汇总持仓成本。
	Summary(ctx context.Context, userID uint) ([]model.CostBasis, error)
}

type holdingService struct {
	repo repository.HoldingRepository
}

func NewHoldingService(repo repository.HoldingRepository) HoldingService {
	return &holdingService{repo: repo}
}

func applyHolding(h *model.Holding, in HoldingInput) error {
	if in.Symbol != nil {
		h.Symbol = strings.ToUpper(strings.TrimSpace(*in.Symbol))
	}
	if in.Quantity != nil {
		h.Quantity = *in.Quantity
	}
	if in.AverageCost != nil {
		h.AverageCost = *in.AverageCost
	}
	if in.Currency != nil {
		h.Currency = strings.ToUpper(strings.TrimSpace(*in.Currency))
	}
	if in.Note != nil {
		h.Note = strings.TrimSpace(*in.Note)
	}
	if h.Currency == "" {
		h.Currency = "USD"
	}

	switch {
	case !symbolPattern.MatchString(h.Symbol):
		return invalidf("symbol must be 1 to 20 characters of A-Z, 0-9, '.' or '-'")
	case !currencyPattern.MatchString(h.Currency):
		return invalidf("currency must be a 3-letter code")
	case math.IsNaN(h.Quantity) || math.IsInf(h.Quantity, 0) || h.Quantity <= 0:
		return invalidf("quantity must be positive")
	case math.IsNaN(h.AverageCost) || math.IsInf(h.AverageCost, 0) || h.AverageCost < 0:
		return invalidf("averageCost must not be negative")
	case len([]rune(h.Note)) > 500:
		return invalidf("note must be at most 500 characters")
	}
	return nil
}

func (s *holdingService) Create(ctx context.Context, userID uint, in HoldingInput) (*model.Holding, error) {
	h := &model.Holding{UserID: userID}
	if err := applyHolding(h, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, conflictOr(err, "holding for this symbol already exists")
	}
	return h, nil
}

func (s *holdingService) List(ctx context.Context, userID uint) ([]model.Holding, error) {
	hs, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if hs == nil {
		hs = []model.Holding{}
	}
	return hs, nil
}

func (s *holdingService) Update(ctx context.Context, userID, holdingID uint, in HoldingInput) (*model.Holding, error) {
	h, err := s.repo.FindByID(ctx, holdingID, userID)
	if err != nil {
		return nil, err
	}
	if err := applyHolding(h, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, h); err != nil {
		return nil, conflictOr(err, "holding for this symbol already exists")
	}
	return h, nil
}

func (s *holdingService) Delete(ctx context.Context, userID, holdingID uint) error {
	return s.repo.Delete(ctx, holdingID, userID)
}

func (s *holdingService) Summary(ctx context.Context, userID uint) ([]model.CostBasis, error) {
	hs, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	byCurrency := map[string]*model.CostBasis{}
	for _, h := range hs {
		cb, ok := byCurrency[h.Currency]
		if !ok {
			cb = &model.CostBasis{Currency: h.Currency}
			byCurrency[h.Currency] = cb
		}
		cb.Positions++
		cb.TotalCost += h.Quantity * h.AverageCost
	}
	out := make([]model.CostBasis, 0, len(byCurrency))
	for _, cb := range byCurrency {
		cb.TotalCost = math.Round(cb.TotalCost*100) / 100
		out = append(out, *cb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}
