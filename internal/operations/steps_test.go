package operations

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsunify/internal/dataprocessing"
	"opsunify/pkg/contracts/domain"
)

const advisorsCSV = `Conta;Nome;Assessor
1234,00;Maria;Assessor A
`

const operationsCSV = `Data_Operação;Conta_Cliente;Tipo Operação;Tipo Opção;Ativo;Preço Exercício;Quantidade;Barreira Knock In;Barreira Knock Out;Direção da Barreira;Rebate;Fixing;KnockInAtingido;Estrutura;Ref;Bid(+)/Offer(-);Código do Produto
10/01/2024;1234;Compra;Call;PETR4;11,00;100;;;;;15/01/2024;;Fence;10,00;2,00;P1
10/01/2024;1234;Venda;Put;PETR4;9,50;150;;;;;15/01/2024;;Fence;10,00;-0,50;P1
`

const dashboardCSV = `Conta;Ativo;Data de Fixing;Preço de Abertura;Preço de Mercado
1234;petr4;15/01/2024;8,00;12,00
`

// captureSink records every delivered run result.
type captureSink struct {
	mu      sync.Mutex
	results []RunResult
	err     error
}

func (s *captureSink) Deliver(_ context.Context, result RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, result)
	return nil
}

func (s *captureSink) delivered() []RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunResult(nil), s.results...)
}

func baseInputs() RunInputs {
	return RunInputs{
		Advisors:   InputSource{Filename: "advisors.csv", Reader: strings.NewReader(advisorsCSV)},
		Operations: InputSource{Filename: "operations.csv", Reader: strings.NewReader(operationsCSV)},
	}
}

func dashboardInputs() RunInputs {
	in := baseInputs()
	in.Dashboard = &InputSource{Filename: "dashboard.csv", Reader: strings.NewReader(dashboardCSV)}
	return in
}

func newPipelineManager(t *testing.T, hub WebSocketHub, sink ResultSink) *Manager {
	t.Helper()
	manager := NewManager(hub, nil, nil)
	t.Cleanup(manager.GetBroadcaster().Stop)
	opts := StepOptions{
		EnableProgress:    true,
		StatusBroadcaster: manager.GetBroadcaster(),
	}
	require.NoError(t, RegisterPipelineSteps(manager, sink, opts))
	return manager
}

func TestPipelineEndToEndBaseVariant(t *testing.T) {
	hub := newMockHub()
	sink := &captureSink{}
	manager := newPipelineManager(t, hub, sink)

	resp, err := manager.Execute(context.Background(), RunRequest{
		ID:     "run-base",
		Inputs: baseInputs(),
	})
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, resp.Status)
	assert.Equal(t, domain.VariantBase, resp.Variant)
	assert.Equal(t, 2, resp.Stats.LegsIn)
	assert.Equal(t, 1, resp.Stats.RowsOut)
	assert.Equal(t, 1, resp.Stats.AdvisorMatches)
	assert.Equal(t, 0, resp.Stats.DashboardMatches)
	assert.Greater(t, resp.Duration.Nanoseconds(), int64(0))
	assert.Empty(t, resp.Error)

	require.NotNil(t, resp.Result)
	require.Equal(t, 1, resp.Result.RowCount())
	row := resp.Result.Rows[0]
	assert.Equal(t, "Assessor A", row[resp.Result.ColumnIndex("Assessor")])
	assert.Equal(t, "R$ 1.725,00", row[resp.Result.ColumnIndex("Ref+Bid")])
	assert.Equal(t, "21,05%", row[resp.Result.ColumnIndex("% Saindo agora")])

	for _, id := range []string{StepIDParse, StepIDValidate, StepIDAggregate, StepIDJoin, StepIDCalculate, StepIDFormat, StepIDExport} {
		step := resp.Steps[id]
		require.NotNil(t, step, "missing step state %s", id)
		assert.Equal(t, StepStatusCompleted, step.Status, "step %s", id)
	}

	delivered := sink.delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, "run-base", delivered[0].RunID)
	assert.Equal(t, domain.VariantBase, delivered[0].Variant)
	assert.Equal(t, 1, delivered[0].Table.RowCount())
	assert.Equal(t, 2, delivered[0].Stats.LegsIn)

	events := hub.events()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, "run:snapshot", ev.eventType)
		assert.Equal(t, "run-base", ev.subtype)
		assert.Equal(t, "update", ev.action)
	}
	last, ok := events[len(events)-1].data.(*RunSnapshot)
	require.True(t, ok)
	assert.Equal(t, string(RunStatusCompleted), last.Status)
	assert.Equal(t, 100, last.Progress)
}

func TestPipelineEndToEndDashboardVariant(t *testing.T) {
	sink := &captureSink{}
	manager := newPipelineManager(t, nil, sink)

	resp, err := manager.Execute(context.Background(), RunRequest{
		ID:     "run-dash",
		Inputs: dashboardInputs(),
	})
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, resp.Status)
	assert.Equal(t, domain.VariantDashboard, resp.Variant)
	assert.Equal(t, 1, resp.Stats.DashboardMatches)

	require.NotNil(t, resp.Result)
	row := resp.Result.Rows[0]
	assert.Equal(t, 8.0, row[resp.Result.ColumnIndex("Preço de Abertura")])
	assert.Equal(t, 12.0, row[resp.Result.ColumnIndex("Preço de Mercado")])
	assert.Equal(t, "68,75%", row[resp.Result.ColumnIndex("% Lucro")])
	assert.Equal(t, "R$ 825,00", row[resp.Result.ColumnIndex("Lucro (R$)")])
}

func TestPipelineSaindoHojeVariant(t *testing.T) {
	sink := &captureSink{}
	manager := newPipelineManager(t, nil, sink)

	inputs := baseInputs()
	inputs.Dashboard = &InputSource{
		Filename: "dashboard.csv",
		Reader:   strings.NewReader("Conta;Ativo;Data de Fixing;Preço de Abertura;Preço de Mercado\n1234;PETR4;15/01/2024;10,00;11,00\n"),
	}

	resp, err := manager.Execute(context.Background(), RunRequest{
		Variant: domain.VariantSaindoHoje,
		Inputs:  inputs,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, domain.VariantSaindoHoje, resp.Variant)
	require.NotNil(t, resp.Result)
	row := resp.Result.Rows[0]
	assert.Equal(t, float64(150), row[resp.Result.ColumnIndex("Resultado Anterior")])
	assert.Equal(t, "25,00%", row[resp.Result.ColumnIndex("% Saindo Hoje")])
}

func TestPipelineSchemaErrorFailsValidateStep(t *testing.T) {
	sink := &captureSink{}
	manager := newPipelineManager(t, nil, sink)

	inputs := baseInputs()
	inputs.Advisors = InputSource{Filename: "advisors.csv", Reader: strings.NewReader("Conta;Nome\n1234;Maria\n")}

	resp, err := manager.Execute(context.Background(), RunRequest{ID: "run-schema", Inputs: inputs})
	require.Error(t, err)

	assert.Equal(t, RunStatusFailed, resp.Status)
	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	assert.Contains(t, resp.Error, "Assessor")

	var schemaErr *dataprocessing.SchemaError
	assert.True(t, errors.As(err, &schemaErr))

	assert.Equal(t, StepStatusCompleted, resp.Steps[StepIDParse].Status)
	assert.Equal(t, StepStatusFailed, resp.Steps[StepIDValidate].Status)
	assert.Equal(t, StepStatusPending, resp.Steps[StepIDAggregate].Status)
	assert.Empty(t, sink.delivered())
	assert.Nil(t, resp.Result)
}

func TestPipelineVariantRequiresDashboard(t *testing.T) {
	manager := newPipelineManager(t, nil, &captureSink{})

	_, err := manager.Execute(context.Background(), RunRequest{
		Variant: domain.VariantSaindoHoje,
		Inputs:  baseInputs(),
	})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	assert.Contains(t, err.Error(), "dashboard")
}

func TestPipelineUnsupportedFileTypeFailsParseStep(t *testing.T) {
	sink := &captureSink{}
	manager := newPipelineManager(t, nil, sink)

	inputs := baseInputs()
	inputs.Operations = InputSource{Filename: "operations.txt", Reader: strings.NewReader("whatever")}

	resp, err := manager.Execute(context.Background(), RunRequest{ID: "run-ext", Inputs: inputs})
	require.Error(t, err)

	assert.Equal(t, RunStatusFailed, resp.Status)
	assert.Equal(t, StepStatusFailed, resp.Steps[StepIDParse].Status)
	assert.Equal(t, StepStatusPending, resp.Steps[StepIDValidate].Status)
	assert.Contains(t, err.Error(), "unsupported file type")
	assert.Empty(t, sink.delivered())
}

func TestPipelineSinkFailureFailsExportStep(t *testing.T) {
	sink := &captureSink{err: errors.New("store unavailable")}
	manager := newPipelineManager(t, nil, sink)

	resp, err := manager.Execute(context.Background(), RunRequest{ID: "run-sink", Inputs: baseInputs()})
	require.Error(t, err)

	assert.Equal(t, RunStatusFailed, resp.Status)
	assert.Equal(t, StepStatusFailed, resp.Steps[StepIDExport].Status)
	assert.Equal(t, StepStatusCompleted, resp.Steps[StepIDFormat].Status)
	// The table was built even though delivery failed
	assert.NotNil(t, resp.Result)
}

func TestPipelineNilSink(t *testing.T) {
	manager := newPipelineManager(t, nil, nil)

	resp, err := manager.Execute(context.Background(), RunRequest{Inputs: baseInputs()})
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, resp.Status)
	require.NotNil(t, resp.Result)
}

func TestRegisterPipelineStepsOrder(t *testing.T) {
	manager := NewManager(nil, nil, nil)
	t.Cleanup(manager.GetBroadcaster().Stop)
	require.NoError(t, RegisterPipelineSteps(manager, nil, StepOptions{}))

	steps, err := manager.GetRegistry().GetDependencyOrder()
	require.NoError(t, err)

	ids := make([]string, len(steps))
	for i, step := range steps {
		ids[i] = step.ID()
	}
	assert.Equal(t, []string{StepIDParse, StepIDValidate, StepIDAggregate, StepIDJoin, StepIDCalculate, StepIDFormat, StepIDExport}, ids)
}

func TestRegisterPipelineStepsRejectsDuplicates(t *testing.T) {
	manager := NewManager(nil, nil, nil)
	t.Cleanup(manager.GetBroadcaster().Stop)
	require.NoError(t, RegisterPipelineSteps(manager, nil, StepOptions{}))
	assert.Error(t, RegisterPipelineSteps(manager, nil, StepOptions{}))
}

func TestVariantFromStatePrecedence(t *testing.T) {
	state := NewRunState("run-variant")
	assert.Equal(t, domain.VariantBase, variantFromState(state))

	state.SetConfig(ConfigKeyVariant, string(domain.VariantSaindoHoje))
	assert.Equal(t, domain.VariantSaindoHoje, variantFromState(state))

	// The variant resolved at parse time wins over the requested one
	state.SetContext(ContextKeyVariant, domain.VariantDashboard)
	assert.Equal(t, domain.VariantDashboard, variantFromState(state))
}

func TestStatsFromStateSeedsWhenMissing(t *testing.T) {
	state := NewRunState("run-stats")
	stats := statsFromState(state)
	require.NotNil(t, stats)

	stats.LegsIn = 7
	assert.Same(t, stats, statsFromState(state))
	assert.Equal(t, 7, statsFromState(state).LegsIn)
}
