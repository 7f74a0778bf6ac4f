// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"examflow-workers/internal/audit"
	"examflow-workers/internal/common/config"
	"examflow-workers/internal/common/database"
	"examflow-workers/internal/common/logger"
	"examflow-workers/internal/integrity"
	"examflow-workers/internal/ocr"
	"examflow-workers/internal/omr"
	"examflow-workers/internal/pipeline"
	"examflow-workers/internal/registry"

	generateresult "examflow-workers/internal/workers/results/generate-result"
	secureresult "examflow-workers/internal/workers/results/secure-result"
)

var (
	zeebeClient zbc.Client
	zapLog      *zap.Logger
)

const (
	e2eRegNumber    = "XYZ1733750400123042"
	e2eExamName     = "SSC-2026"
	e2eAnswerString = "AB-CD"
	e2eAnswerKey    = "ABACD"
)

func TestMain(m *testing.M) {
	var err error

	// Initialize Zeebe client with real connection
	zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         "localhost:26500",
		UsePlaintextConnection: true,
	})
	if err != nil {
		panic(fmt.Sprintf("❌ Failed to connect to Zeebe: %v", err))
	}

	zapLog, _ = zap.NewProduction()

	code := m.Run()

	zeebeClient.Close()
	os.Exit(code)
}

func TestFullE2E(t *testing.T) {
	_, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	t.Log("🚀 Starting FULL E2E Test with real services...")

	// 1. Check all external services are available
	assertAllServicesConnectivity(t, cfg)

	// 2. Create registry tables and seed a candidate, key and secured result
	createRegistryTables(t, cfg)

	// 3. Deploy all BPMN files
	deployAllBPMN(t, cfg, zapLog)

	// 4. Run both workers against the real registry
	testAllWorkers(t, cfg, zapLog)
}

// ==========================
// 1. Service Connectivity
// ==========================
func assertAllServicesConnectivity(t *testing.T, cfg *config.Config) {
	t.Log("🔍 Checking service connectivity...")

	// 🔧 FORCE LOCALHOST FOR E2E TESTS
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"
	cfg.Database.Elasticsearch.URL = "http://localhost:9200"

	// --- PostgreSQL ---
	db, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "❌ PostgreSQL connection failed")
	assert.NoError(t, db.Ping(context.Background()), "❌ PostgreSQL ping failed")
	db.Close()
	t.Log("✅ PostgreSQL connected")

	// --- Redis ---
	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "❌ Redis client creation failed")
	assert.NoError(t, rdb.Ping(context.Background()), "❌ Redis ping failed")
	t.Log("✅ Redis connected")

	// --- Elasticsearch ---
	esURL := cfg.Database.Elasticsearch.GetURL()
	t.Logf("🔗 Elasticsearch URL: %s", esURL)

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{esURL},
	})
	require.NoError(t, err, "❌ Elasticsearch client creation failed")

	res, err := es.Info()
	require.NoError(t, err, "❌ Elasticsearch info request failed")
	assert.False(t, res.IsError(), "❌ Elasticsearch returned error")
	res.Body.Close()
	t.Log("✅ Elasticsearch connected")

	// --- Zeebe ---
	_, err = zeebeClient.NewTopologyCommand().Send(context.Background())
	assert.NoError(t, err, "❌ Zeebe topology request failed")
	t.Log("✅ Zeebe connected")

	// --- OMR decoder (config loaded only, availability checked per worker) ---
	t.Logf("✅ OMR decoder base URL: %s", cfg.Decoder.BaseURL)
}

// ==========================
// 2. Registry Tables Setup + Test Data
// ==========================
func createRegistryTables(t *testing.T, cfg *config.Config) {
	t.Log("🔧 Creating registry tables and inserting test data...")

	dbClient, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	defer dbClient.Close()

	db := dbClient.GetDB()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS candidates (
			id VARCHAR(255) PRIMARY KEY,
			registration_number VARCHAR(64) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255),
			phone VARCHAR(50),
			date_of_birth VARCHAR(20),
			exam_name VARCHAR(255),
			exam_category VARCHAR(100),
			exam_center VARCHAR(255),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS answer_keys (
			id VARCHAR(255) PRIMARY KEY,
			exam_name VARCHAR(255) NOT NULL,
			version VARCHAR(50) NOT NULL,
			answer_string TEXT NOT NULL,
			total_questions INTEGER NOT NULL,
			active BOOLEAN DEFAULT false,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS exam_results (
			id VARCHAR(255) PRIMARY KEY,
			registration_number VARCHAR(64) UNIQUE NOT NULL,
			candidate_id VARCHAR(255) NOT NULL,
			answer_string TEXT NOT NULL,
			answer_string_hash VARCHAR(64) NOT NULL,
			omr_name VARCHAR(255),
			omr_roll_number VARCHAR(64),
			version VARCHAR(50),
			total_questions INTEGER,
			answered_questions INTEGER,
			status VARCHAR(50),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS final_results (
			id VARCHAR(255) PRIMARY KEY,
			registration_number VARCHAR(64) UNIQUE NOT NULL,
			candidate_id VARCHAR(255) NOT NULL,
			answer_string TEXT NOT NULL,
			answer_string_hash VARCHAR(64) NOT NULL,
			correct_answers INTEGER,
			wrong_answers INTEGER,
			unattempted INTEGER,
			score INTEGER,
			percentage DOUBLE PRECISION,
			total_questions INTEGER,
			answered_questions INTEGER,
			status VARCHAR(50),
			generated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		_, err := db.ExecContext(context.Background(), query)
		if err != nil {
			t.Logf("Warning: Failed to create table: %v", err)
		}
	}

	answerHash := integrity.Digest(e2eAnswerString)

	testData := []string{
		`INSERT INTO candidates (id, registration_number, name, email, phone, date_of_birth, exam_name, exam_category, exam_center)
		 VALUES ('e2e-candidate-001', '` + e2eRegNumber + `', 'E2E Candidate', 'e2e@example.com', '+911234567890', '1999-04-12', '` + e2eExamName + `', 'GENERAL', 'Center 42')
		 ON CONFLICT (registration_number) DO NOTHING`,
		`INSERT INTO answer_keys (id, exam_name, version, answer_string, total_questions, active)
		 VALUES ('e2e-key-001', '` + e2eExamName + `', 'SET-A', '` + e2eAnswerKey + `', 5, true)
		 ON CONFLICT (id) DO NOTHING`,
		`INSERT INTO exam_results (id, registration_number, candidate_id, answer_string, answer_string_hash,
			omr_name, omr_roll_number, version, total_questions, answered_questions, status)
		 VALUES ('e2e-exam-001', '` + e2eRegNumber + `', 'e2e-candidate-001', '` + e2eAnswerString + `', '` + answerHash + `',
			'E2E Candidate', '042', 'SET-A', 5, 4, 'secured')
		 ON CONFLICT (registration_number) DO NOTHING`,
		// generate-result rejects duplicates, so reruns need a clean slate
		`DELETE FROM final_results WHERE registration_number = '` + e2eRegNumber + `'`,
	}

	for _, query := range testData {
		_, err := db.ExecContext(context.Background(), query)
		if err != nil {
			t.Logf("Warning: Failed to insert test data: %v", err)
		}
	}

	t.Log("✅ Registry tables created/verified with test data")
}

// ==========================
// 3. Deploy All BPMN Files
// ==========================
func deployAllBPMN(t *testing.T, _ *config.Config, _ *zap.Logger) {
	t.Log("🏗️ Deploying BPMN files...")

	client := zeebeClient

	possiblePaths := []string{
		"bpmn",
		"../bpmn",
		"../../bpmn",
		"./bpmn",
	}

	var bpmnDir string
	var files []os.DirEntry
	var err error

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			files, err = os.ReadDir(path)
			if err == nil {
				bpmnDir = path
				t.Logf("📁 Found BPMN directory: %s", bpmnDir)
				break
			}
		}
	}

	if bpmnDir == "" {
		t.Log("⚠️ BPMN directory not found in any expected location, skipping deployment")
		return
	}

	require.NoError(t, err, "❌ Cannot read BPMN directory")

	bpmnCount := 0
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(f.Name()), ".bpmn") {
			continue
		}

		path := fmt.Sprintf("%s/%s", bpmnDir, f.Name())
		t.Logf("📄 Deploying BPMN: %s", path)

		_, err := client.NewDeployResourceCommand().AddResourceFile(path).Send(context.Background())
		if err != nil {
			t.Logf("⚠️ Failed to deploy BPMN %s: %v", f.Name(), err)
		} else {
			t.Logf("✅ Deployed: %s", f.Name())
			bpmnCount++
		}
	}

	if bpmnCount == 0 {
		t.Log("ℹ️ No BPMN files were successfully deployed")
	} else {
		t.Logf("✅ Successfully deployed %d BPMN files", bpmnCount)
	}
}

// ==========================
// 4. Worker Execution
// ==========================
func testAllWorkers(t *testing.T, cfg *config.Config, log *zap.Logger) {
	t.Log("🧪 Testing workers with real execution...")

	dbClient, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	defer dbClient.Close()

	db := dbClient.GetDB()

	rdbClient, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	defer rdbClient.Close()

	rdb := rdbClient.GetClient()

	testCases := []struct {
		name   string
		testFn func(*testing.T, *config.Config, *zap.Logger, *sql.DB, *redis.Client)
	}{
		{"secure-result", testSecureResult},
		{"generate-result", testGenerateResult},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.testFn(t, cfg, log, db, rdb)
		})
	}
}

// testSecureResult drives the full secure flow against the registry. The OMR
// decoder and tesseract usually aren't available in CI, so an error from the
// decode stage counts as exercised.
func testSecureResult(t *testing.T, cfg *config.Config, log *zap.Logger, db *sql.DB, rdb *redis.Client) {
	logAdapter := logger.NewZapAdapter(log)

	decoder := omr.NewClient(cfg.Decoder.BaseURL, config.GetDuration(cfg.Decoder.Timeout), logAdapter)
	extractor := ocr.NewExtractor(
		ocr.NewTesseractEngine(cfg.OCR.TessData),
		cfg.OCR.ExamPrefix, cfg.OCR.Language, logAdapter,
	)
	candidates := registry.NewCandidateStore(db, rdb, logAdapter)
	examResults := registry.NewExamResultStore(db, logAdapter)
	sheetGuard := omr.NewSheetGuard(rdb, config.GetDuration(cfg.Decoder.DedupTTL), logAdapter)

	flow := pipeline.NewSecureResultFlow(
		decoder, sheetGuard, extractor, candidates, examResults,
		audit.Disabled(logAdapter), logAdapter,
	)

	handler := secureresult.NewHandler(secureresult.LoadConfig(), flow, logAdapter)

	fakeImage := base64.StdEncoding.EncodeToString([]byte("not a real scan"))
	input := &secureresult.Input{
		AdmitCardImage: fakeImage,
		OMRSheetImage:  fakeImage,
		OMRFileName:    "e2e-omr.png",
	}

	output, err := handler.Execute(context.Background(), input)
	if err != nil {
		t.Logf("ℹ️ secure-result failed as expected without a live decoder: %v", err)
		assert.Error(t, err)
		return
	}

	require.NotNil(t, output)
	assert.NotEmpty(t, output.RegistrationNumber)
	assert.NotEmpty(t, output.AnswerStringHash)
	assert.Equal(t, registry.StatusSecured, output.Status)
}

// testGenerateResult uses the seeded registration number so the OCR stage is
// skipped and the flow runs entirely against real Postgres and Redis.
func testGenerateResult(t *testing.T, cfg *config.Config, log *zap.Logger, db *sql.DB, rdb *redis.Client) {
	logAdapter := logger.NewZapAdapter(log)

	extractor := ocr.NewExtractor(
		ocr.NewTesseractEngine(cfg.OCR.TessData),
		cfg.OCR.ExamPrefix, cfg.OCR.Language, logAdapter,
	)
	candidates := registry.NewCandidateStore(db, rdb, logAdapter)
	examResults := registry.NewExamResultStore(db, logAdapter)
	answerKeys := registry.NewAnswerKeyStore(db, logAdapter)
	finalResults := registry.NewFinalResultStore(db, logAdapter)

	flow := pipeline.NewGenerateResultFlow(
		extractor, candidates, examResults, answerKeys, finalResults,
		audit.Disabled(logAdapter), nil, logAdapter,
	)

	handler := generateresult.NewHandler(generateresult.LoadConfig(), flow, logAdapter)

	input := &generateresult.Input{RegistrationNumber: e2eRegNumber}

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, output)

	// "AB-CD" against key "ABACD": four positions match, Q3 unanswered
	assert.Equal(t, e2eRegNumber, output.RegistrationNumber)
	assert.Equal(t, 4, output.Score)
	assert.Equal(t, 4, output.CorrectAnswers)
	assert.Equal(t, 0, output.WrongAnswers)
	assert.Equal(t, 1, output.Unattempted)
	assert.InDelta(t, 80.0, output.Percentage, 0.01)
	assert.Equal(t, 5, output.TotalQuestions)
	assert.Equal(t, registry.StatusPublished, output.Status)
	assert.False(t, output.LengthMismatch)
	assert.NotEmpty(t, output.FinalResultID)

	// published row must be readable back with the same hash
	stored, err := finalResults.FindByRegistration(context.Background(), e2eRegNumber)
	require.NoError(t, err)
	assert.Equal(t, integrity.Digest(e2eAnswerString), stored.AnswerStringHash)
}
