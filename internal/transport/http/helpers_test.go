package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"opsunify/internal/config"
	"opsunify/internal/middleware"
	"opsunify/internal/operations"
	"opsunify/internal/services"
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

// advisorsMissingColumnsCSV lacks the Assessor column, so schema validation
// fails the run.
const advisorsMissingColumnsCSV = `Conta;Nome
1234,00;Maria
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.ExecutableDir = t.TempDir()
	return cfg
}

func newTestUnifyService(t *testing.T, cfg *config.Config) *services.UnifyService {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	svc, err := services.NewUnifyService(cfg, nil, discardLogger())
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

// completedRun pushes one base-variant run through the service so the
// report and run status endpoints have something to serve.
func completedRun(t *testing.T, svc *services.UnifyService) *domain.RunSummary {
	t.Helper()
	summary, err := svc.Unify(context.Background(), services.UnifyRequest{
		Advisors:   operations.InputSource{Filename: "assessores.csv", Reader: strings.NewReader(advisorsCSV)},
		Operations: operations.InputSource{Filename: "operacoes.csv", Reader: strings.NewReader(operationsCSV)},
	})
	require.NoError(t, err)
	return summary
}

type uploadSpec struct {
	field    string
	filename string
	content  string
}

// multipartRequest builds a multipart POST with the given file parts and
// form fields.
func multipartRequest(t *testing.T, target string, uploads []uploadSpec, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, up := range uploads {
		part, err := writer.CreateFormFile(up.field, up.filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, up.content)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func dataField(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", body)
	return data
}

// mountRouter wires a handler subtree the way the application does, with
// request IDs available to the handlers.
func mountRouter(endpoint string, routes chi.Router) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Mount(endpoint, routes)
	return r
}
