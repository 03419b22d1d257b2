package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"

	"github.com/jcuenca6779/urbandrive/internal/domain"
	"github.com/jcuenca6779/urbandrive/internal/service"
	mock_service "github.com/jcuenca6779/urbandrive/internal/service/mocks"
	"github.com/jcuenca6779/urbandrive/pkg/e"
)

func TestGamificationEngine_Handle_VerifiedReportRewards(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mock_service.NewMockGameStore(ctrl)

	store.EXPECT().
		AddXP(gomock.Any(), int64(7), int64(service.XPPerVerifiedReport)).
		Return(int64(10), nil).
		Times(1)
	store.EXPECT().
		AddCoins(gomock.Any(), int64(7), int64(service.CoinsPerVerifiedReport)).
		Return(int64(5), nil).
		Times(1)
	store.EXPECT().
		Badges(gomock.Any(), int64(7)).
		Return(nil, nil).
		Times(1)
	// 10 XP crosses no threshold, so no AddBadge call.

	engine := service.NewGamificationEngine(store, discardLogger())

	body := []byte(`{"event_type":"reporte_verificado","user_id":7,"puntos_base":50,"incidente_id":3,"validaciones_count":3}`)
	if err := engine.Handle(context.Background(), body); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestGamificationEngine_Handle_LegacyValidatedAliasRewards(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mock_service.NewMockGameStore(ctrl)

	store.EXPECT().AddXP(gomock.Any(), int64(9), gomock.Any()).Return(int64(10), nil).Times(1)
	store.EXPECT().AddCoins(gomock.Any(), int64(9), gomock.Any()).Return(int64(5), nil).Times(1)
	store.EXPECT().Badges(gomock.Any(), int64(9)).Return(nil, nil).Times(1)

	engine := service.NewGamificationEngine(store, discardLogger())

	// Old producers used "type" plus "usuario_id" and the validado name.
	body := []byte(`{"type":"reporte_validado","usuario_id":9}`)
	if err := engine.Handle(context.Background(), body); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestGamificationEngine_Handle_CrossingThresholdAwardsBadge(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mock_service.NewMockGameStore(ctrl)

	store.EXPECT().AddXP(gomock.Any(), int64(7), gomock.Any()).Return(int64(100), nil).Times(1)
	store.EXPECT().AddCoins(gomock.Any(), int64(7), gomock.Any()).Return(int64(50), nil).Times(1)
	store.EXPECT().Badges(gomock.Any(), int64(7)).Return(nil, nil).Times(1)
	store.EXPECT().AddBadge(gomock.Any(), int64(7), "Explorador Urbano").Return(nil).Times(1)

	engine := service.NewGamificationEngine(store, discardLogger())

	body := []byte(`{"event_type":"reporte_verificado","user_id":7}`)
	if err := engine.Handle(context.Background(), body); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestGamificationEngine_Handle_MultipleThresholdsAwardedAtOnce(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mock_service.NewMockGameStore(ctrl)

	// Total lands at 500 with only the first badge owned: the two missing
	// thresholds at or below 500 are both granted.
	store.EXPECT().AddXP(gomock.Any(), int64(7), gomock.Any()).Return(int64(500), nil).Times(1)
	store.EXPECT().AddCoins(gomock.Any(), int64(7), gomock.Any()).Return(int64(250), nil).Times(1)
	store.EXPECT().Badges(gomock.Any(), int64(7)).Return([]string{"Explorador Urbano"}, nil).Times(1)
	store.EXPECT().AddBadge(gomock.Any(), int64(7), "Guardián de la Ciudad").Return(nil).Times(1)
	store.EXPECT().AddBadge(gomock.Any(), int64(7), "Héroe del Tráfico").Return(nil).Times(1)

	engine := service.NewGamificationEngine(store, discardLogger())

	body := []byte(`{"event_type":"reporte_verificado","user_id":7}`)
	if err := engine.Handle(context.Background(), body); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestGamificationEngine_Handle_OwnedBadgesNotRegranted(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mock_service.NewMockGameStore(ctrl)

	store.EXPECT().AddXP(gomock.Any(), int64(7), gomock.Any()).Return(int64(110), nil).Times(1)
	store.EXPECT().AddCoins(gomock.Any(), int64(7), gomock.Any()).Return(int64(55), nil).Times(1)
	store.EXPECT().Badges(gomock.Any(), int64(7)).Return([]string{"Explorador Urbano"}, nil).Times(1)
	// No AddBadge: the only crossed threshold is already owned.

	engine := service.NewGamificationEngine(store, discardLogger())

	body := []byte(`{"event_type":"reporte_verificado","user_id":7}`)
	if err := engine.Handle(context.Background(), body); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestGamificationEngine_Handle_CreatedEventIsAckedWithoutReward(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mock_service.NewMockGameStore(ctrl)
	// No store expectations at all.

	engine := service.NewGamificationEngine(store, discardLogger())

	body := []byte(`{"event_type":"reporte_creado","user_id":7,"puntos_base":10}`)
	if err := engine.Handle(context.Background(), body); err != nil {
		t.Fatalf("created event must be a successful no-op: %v", err)
	}
}

func TestGamificationEngine_Handle_UnknownTypeIgnored(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mock_service.NewMockGameStore(ctrl)

	engine := service.NewGamificationEngine(store, discardLogger())

	body := []byte(`{"event_type":"usuario_registrado","user_id":7}`)
	if err := engine.Handle(context.Background(), body); err != nil {
		t.Fatalf("unknown types are dropped with an ack, got err %v", err)
	}
}

func TestGamificationEngine_Handle_MalformedPayloads(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"event_type": "reporte_verificado",`},
		{"missing type", `{"user_id":7}`},
		{"missing user id", `{"event_type":"reporte_verificado"}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := mock_service.NewMockGameStore(ctrl)

			engine := service.NewGamificationEngine(store, discardLogger())

			err := engine.Handle(context.Background(), []byte(tc.body))
			if !errors.Is(err, e.ErrMalformedEvent) {
				t.Fatalf("expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}

func TestGamificationEngine_Handle_StoreFailurePropagates(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mock_service.NewMockGameStore(ctrl)

	wantErr := errors.New("redis down")
	store.EXPECT().
		AddXP(gomock.Any(), int64(7), gomock.Any()).
		Return(int64(0), wantErr).
		Times(1)

	engine := service.NewGamificationEngine(store, discardLogger())

	body := []byte(`{"event_type":"reporte_verificado","user_id":7}`)
	if err := engine.Handle(context.Background(), body); !errors.Is(err, wantErr) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}

func TestGamificationEngine_ReadsDelegate(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mock_service.NewMockGameStore(ctrl)

	wantBoard := []domain.LeaderboardEntry{{Rank: 1, UserID: 7, XP: 500}}
	store.EXPECT().Leaderboard(gomock.Any(), 10).Return(wantBoard, nil).Times(1)

	wantProfile := domain.UserProfile{UserID: 7, XP: 500, Coins: 250, Level: domain.LevelForXP(500)}
	store.EXPECT().Profile(gomock.Any(), int64(7)).Return(wantProfile, nil).Times(1)

	engine := service.NewGamificationEngine(store, discardLogger())

	board, err := engine.Leaderboard(context.Background(), 10)
	if err != nil || len(board) != 1 || board[0].UserID != 7 {
		t.Fatalf("unexpected board=%+v err=%v", board, err)
	}

	profile, err := engine.Profile(context.Background(), 7)
	if err != nil || profile.XP != 500 {
		t.Fatalf("unexpected profile=%+v err=%v", profile, err)
	}
}
