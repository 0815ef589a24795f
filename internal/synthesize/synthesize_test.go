package synthesize

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/cloudforge/internal/blueprint"
	"github.com/fyrsmithlabs/cloudforge/internal/genai"
)

func TestValidate_CleanCode(t *testing.T) {
	code := `with Diagram("Serverless API", show=False, filename="diagram"):
    api = APIGateway("API")
    func = Lambda("Handler")
    with Cluster("Database"):
        db = DynamodbTable("Users")
    api >> func >> db`

	report := Validate(code)
	assert.True(t, report.IsValid)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 3, report.ComponentCount)
	assert.Equal(t, 2, report.RelationshipCount)
}

func TestValidate_UnterminatedString(t *testing.T) {
	code := `api = APIGateway("API)
func = Lambda("Handler")
api >> func`

	report := Validate(code)
	assert.False(t, report.IsValid)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0].Message, "line 1")
	assert.Contains(t, report.Errors[0].Message, `APIGateway("API)`)
	assert.Equal(t, "error", report.Errors[0].Severity)
}

func TestValidate_CommentLinesSkipQuoteCheck(t *testing.T) {
	code := `# it's a comment with an odd quote
api = APIGateway("API")`

	report := Validate(code)
	assert.True(t, report.IsValid)
}

func TestValidate_EscapedQuotesBalanced(t *testing.T) {
	code := `api = APIGateway("API \"edge\" gateway")`
	report := Validate(code)
	assert.True(t, report.IsValid)
}

func TestValidate_UnmatchedParens(t *testing.T) {
	code := `api = APIGateway("API"
func = Lambda("Handler")`

	report := Validate(code)
	assert.False(t, report.IsValid)

	found := false
	for _, e := range report.Errors {
		if e.Field == "parentheses" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_RejectsImports(t *testing.T) {
	for _, line := range []string{"import os", "from diagrams import Diagram"} {
		report := Validate(line + "\napi = APIGateway(\"API\")")
		assert.False(t, report.IsValid, line)
		require.NotEmpty(t, report.Errors)
		assert.Equal(t, "imports", report.Errors[0].Field)
	}
}

func TestValidate_ClusterToClusterWarning(t *testing.T) {
	code := `with Diagram("X", show=False):
    vpc = Cluster("VPC")
    mon = Cluster("Monitoring")
    vpc >> mon`

	report := Validate(code)
	assert.True(t, report.IsValid, "warnings must not fail validation")
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "warning", report.Warnings[0].Severity)
	assert.Contains(t, report.Warnings[0].Message, "vpc >> mon")
}

func TestRepairIdentifiers_AliasTable(t *testing.T) {
	code := `db = DynamoDB("Users")
mon = CloudWatch("Metrics")
search = OpenSearch("Index")`

	repaired, notes := RepairIdentifiers(code)
	assert.Contains(t, repaired, `DynamodbTable("Users")`)
	assert.Contains(t, repaired, `Cloudwatch("Metrics")`)
	assert.Contains(t, repaired, `AmazonOpensearchService("Index")`)
	assert.NotContains(t, repaired, "DynamoDB(")

	require.Len(t, notes, 3)
	assert.Contains(t, notes, RepairNote{From: "DynamoDB", To: "DynamodbTable"})
}

func TestRepairIdentifiers_CatchAllDowngradesUnknown(t *testing.T) {
	code := `thing = QuantumLedger("Ledger")
api = APIGateway("API")
api >> thing`

	repaired, notes := RepairIdentifiers(code)
	assert.Contains(t, repaired, `Node("Ledger")`)
	assert.Contains(t, repaired, `APIGateway("API")`, "allow-listed identifiers untouched")

	require.Len(t, notes, 1)
	assert.Equal(t, RepairNote{From: "QuantumLedger", To: "Node"}, notes[0])
}

func TestRepairIdentifiers_SafeListUntouched(t *testing.T) {
	code := `with Diagram("X", show=False):
    with Cluster("G"):
        n = Node("generic")
    n >> Edge(label="x") >> n`

	repaired, notes := RepairIdentifiers(code)
	assert.Equal(t, code, repaired)
	assert.Empty(t, notes)
}

func TestRepairIdentifiers_LeavesStringLiteralsAlone(t *testing.T) {
	code := `api = APIGateway("API Gateway (main)")
db = DynamoDB("Main DynamoDB (users)")
label = Node('uses CloudWatch (custom metrics)')`

	repaired, notes := RepairIdentifiers(code)
	assert.Contains(t, repaired, `"API Gateway (main)"`)
	assert.Contains(t, repaired, `"Main DynamoDB (users)"`)
	assert.Contains(t, repaired, `'uses CloudWatch (custom metrics)'`)
	// Repairs outside the literals still happen.
	assert.Contains(t, repaired, `DynamodbTable("Main DynamoDB (users)")`)

	require.Len(t, notes, 1)
	assert.Equal(t, RepairNote{From: "DynamoDB", To: "DynamodbTable"}, notes[0])
}

func TestRepairIdentifiers_EscapedQuoteInLabel(t *testing.T) {
	code := `api = APIGateway("the \"Edge (api)\" gateway")`

	repaired, notes := RepairIdentifiers(code)
	assert.Equal(t, code, repaired)
	assert.Empty(t, notes)
}

func TestRepairIdentifiers_CountsEachOccurrence(t *testing.T) {
	code := `a = DynamoDB("A")
b = DynamoDB("B")`

	_, notes := RepairIdentifiers(code)
	assert.Len(t, notes, 2)
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Generate(ctx context.Context, systemPrompt, input string, opts genai.GenerateOptions) (string, error) {
	args := m.Called(ctx, systemPrompt, input, opts)
	return args.String(0), args.Error(1)
}

func testBlueprint() *blueprint.Blueprint {
	return &blueprint.Blueprint{
		Title:       "Serverless API",
		Description: "API Gateway fronting Lambda",
		Nodes: []blueprint.ServiceNode{
			{Name: "API", VariableID: "api", ServiceType: "APIGateway"},
			{Name: "Handler", VariableID: "handler", ServiceType: "Lambda"},
		},
		Relationships: []blueprint.Relationship{
			{SourceID: "api", DestID: "handler", ConnectionType: "default"},
		},
		Metadata: map[string]string{"Pattern_Labels": "serverless-api"},
	}
}

func TestSynthesize_StripsFencesAndRepairs(t *testing.T) {
	response := "```python\n" + `with Diagram("X", show=False):
    api = APIGateway("API")
    db = DynamoDB("Users")
    api >> db` + "\n```"

	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(response, nil)

	s := New(client, nil)
	result, err := s.Synthesize(context.Background(), testBlueprint())
	require.NoError(t, err)

	assert.NotContains(t, result.Code, "```")
	assert.Contains(t, result.Code, `DynamodbTable("Users")`)
	assert.True(t, result.Report.IsValid)
	require.Len(t, result.Repairs, 1)

	// The prompt must surface the allow-list and deny-list.
	call := client.Calls[0]
	prompt := call.Arguments.String(1)
	assert.Contains(t, prompt, "DynamodbTable")
	assert.Contains(t, prompt, "DO NOT INSTANTIATE")
	assert.Contains(t, prompt, "RDSProxy")

	// The blueprint rendering must carry metadata enrichment.
	input := call.Arguments.String(2)
	assert.Contains(t, input, "Pattern_Labels: serverless-api")
	assert.Contains(t, input, "api >> handler [default]")
}

func TestSynthesize_RejectsImportLine(t *testing.T) {
	response := `import os
with Diagram("X", show=False):
    api = APIGateway("API")`

	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(response, nil)

	s := New(client, nil)
	result, err := s.Synthesize(context.Background(), testBlueprint())
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.False(t, result.Report.IsValid)
	assert.True(t, strings.Contains(err.Error(), "import"))
}

func TestSynthesize_MissingDiagramContext(t *testing.T) {
	client := &mockClient{}
	client.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("just some prose", nil)

	s := New(client, nil)
	_, err := s.Synthesize(context.Background(), testBlueprint())
	require.ErrorContains(t, err, "missing Diagram context")
}
