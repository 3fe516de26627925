package infrastructure

import (
	"time"

	"perfhub/internal/domain"
)

// DemoDataset implements domain.FallbackSource with the showcase accounts
// shown when nothing live or uploaded covers a query
type DemoDataset struct {
	records []domain.PerformanceRecord
	actions []domain.ActionLog
}

var demoAccounts = map[string]string{
	"acc_01": "Empresta Bem Melhor - Pesquisa",
	"acc_02": "Empresta Bem Melhor - Performance Max",
	"acc_03": "Empresta Facebook - Retargeting",
	"acc_04": "Portal Institucional",
}

func NewDemoDataset() *DemoDataset {
	closedAt := time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	google := domain.ProviderGoogleAds.Label()
	meta := domain.ProviderMetaAds.Label()

	row := func(account, provider, date string, conversions, cost, clicks, impressions float64, event string) domain.PerformanceRecord {
		reportType := domain.ReportCampaign
		if provider == meta {
			reportType = domain.ReportMetaCampaign
		}
		return domain.PerformanceRecord{
			AccountID:     account,
			Provider:      provider,
			Date:          date,
			DimensionName: demoAccounts[account],
			ReportType:    reportType,
			State:         domain.StateClosed,
			Source:        domain.SourceMock,
			Timestamp:     closedAt,
			Conversions:   conversions,
			Cost:          cost,
			Clicks:        clicks,
			Impressions:   impressions,
			Event:         event,
		}.WithID()
	}

	return &DemoDataset{
		records: []domain.PerformanceRecord{
			row("acc_01", google, "2023-10-01", 45, 1200, 850, 12000, ""),
			row("acc_01", google, "2023-10-05", 52, 1350, 920, 13500, "Novo Criativo Vídeo"),
			row("acc_02", google, "2023-10-10", 48, 1100, 880, 11000, ""),
			row("acc_01", google, "2023-10-15", 75, 1800, 1400, 21000, "Ajuste de Lance Automático"),
			row("acc_03", meta, "2023-10-20", 62, 1500, 1100, 18000, ""),
			row("acc_01", google, "2023-10-25", 88, 2200, 1750, 25000, "Campanha Black Friday Antecipada"),
			row("acc_01", google, "2023-10-30", 95, 2400, 1900, 28000, ""),
		},
		actions: []domain.ActionLog{
			{AccountID: "acc_01", Provider: google, Date: "2023-10-05", Action: "Lançamento de criativos focados em FGTS", Category: domain.ActionAds},
			{AccountID: "acc_04", Provider: domain.ProviderSearchConsole.Label(), Date: "2023-10-12", Action: "Otimização de Meta Titles do blog", Category: domain.ActionSEO},
			{AccountID: "acc_01", Provider: google, Date: "2023-10-15", Action: "Implementação de Script de Lances", Category: domain.ActionAds},
			{AccountID: "acc_03", Provider: meta, Date: "2023-10-25", Action: "Início da Promoção Outubro Rosa", Category: domain.ActionMeta},
		},
	}
}

// Records returns a copy of the full demonstration set
func (d *DemoDataset) Records() []domain.PerformanceRecord {
	return append([]domain.PerformanceRecord(nil), d.records...)
}

func (d *DemoDataset) Actions() []domain.ActionLog {
	return append([]domain.ActionLog(nil), d.actions...)
}
