// internal/blueprint/generator.go
package blueprint

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cloudforge/internal/genai"
	"github.com/fyrsmithlabs/cloudforge/internal/logging"
)

// systemPrompt instructs the model to emit the marker-delimited
// blueprint protocol. Kept deliberately rigid: downstream parsing
// depends on the exact section headers and line grammars.
const systemPrompt = `You are the CloudForge Blueprint Architect. Transform AWS architecture descriptions into structured blueprints.

OUTPUT ONLY the blueprint between the markers. Do NOT add intro/outro text.

---BEGIN_BLUEPRINT---
Title: [Project Name]
Description: [Brief description]

Nodes:
- [Service Name] | ID: [service_id] | Type: [AWSClass] | Category: [category]

Clusters:
- Cluster: [Group Name]
  Type: [Logical/VPC/Subnet]
  Members: [service_id1, service_id2]

Relationships:
- [source_id] >> [dest_id]

Metadata:
- Inferred_Decisions: ["decision 1", "decision 2"]
- Security_Risk: [Low/Medium/High]
---END_BLUEPRINT---

RULES:
1. Use valid AWS service class names (e.g., EC2, Lambda, DynamoDB, RDS, APIGateway, VPC, Subnet, SecurityGroup, NATGateway, RDSProxy)
2. Node IDs must be lowercase, snake_case (user_api, rds_proxy, private_subnet)
3. For Serverless APIs: Include Lambda, APIGateway, DynamoDB, and if accessing RDS, add RDSProxy
4. For Database Architectures: Distinguish between DynamoDB (NoSQL), RDS (SQL), and RDSProxy (connection pooling)
5. For VPC Security: Show Private Subnets, Security Groups, NAT Gateway flow
6. Mark databases exposed to internet as Security_Risk: High
7. Include all network components: VPC, Subnets, gateways, security groups`

// serverlessSystemPrompt specializes the blueprint request for
// serverless-heavy descriptions.
const serverlessSystemPrompt = `You are the CloudForge Serverless Architect, expert in AWS Lambda, API Gateway, DynamoDB, and RDS.

GOAL: Design enterprise-grade Serverless architectures with VPC, multi-database support, and RDS connection pooling.

OUTPUT ONLY the blueprint between the markers. Do NOT add intro/outro text.

---BEGIN_BLUEPRINT---
Title: [Project Name]
Description: [Brief description emphasizing security & multi-database design]

Nodes:
- [Service Name] | ID: [service_id] | Type: [AWSClass] | Category: [category]

Clusters:
- Cluster: [Group Name]
  Type: [Logical/VPC/Subnet]
  Members: [service_id1, service_id2]

Relationships:
- [source_id] >> [dest_id]

Metadata:
- Inferred_Decisions: ["decision 1", "decision 2"]
- Security_Risk: [Low/Medium/High]
---END_BLUEPRINT---

RULES FOR SERVERLESS:
1. Always include API Gateway for REST APIs
2. Always include RDSProxy if RDS is mentioned (connection pooling is critical)
3. Always show VPC structure (Public/Private Subnets)
4. Mark databases in private subnets (safe) vs public (HIGH RISK)
5. Include Security Groups for Lambda access control
6. Distinguish between DynamoDB tables and RDS instances
7. Include monitoring services (CloudWatch, CloudTrail)`

// serverlessKeywords drive prompt selection; three or more hits in a
// description switch the request to the serverless prompt.
var serverlessKeywords = []string{
	"lambda", "serverless", "api gateway", "dynamodb", "rds proxy",
	"private subnet", "vpc", "security group", "rest api",
	"function", "event-driven", "managed database",
}

// Generator turns a free-text description into a compiled Blueprint
// via one generation call.
type Generator struct {
	client genai.Client
	log    *logging.Logger
}

// NewGenerator creates a blueprint generator. The logger may be nil.
func NewGenerator(client genai.Client, log *logging.Logger) *Generator {
	if log == nil {
		log = logging.NewNop()
	}
	return &Generator{client: client, log: log.Named("blueprint")}
}

// Generate asks the model for a blueprint and compiles the response.
// Compile-level warnings are logged and returned; a parse failure is
// an error the caller may retry.
func (g *Generator) Generate(ctx context.Context, description string) (*Blueprint, []string, error) {
	prompt := systemPrompt
	if isServerless(description) {
		g.log.Debug(ctx, "serverless description detected, using specialized prompt")
		prompt = serverlessSystemPrompt
	}

	input := "User input:\n" + description
	raw, err := g.client.Generate(ctx, prompt, input, genai.GenerateOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("blueprint generation call failed: %w", err)
	}

	bp, warnings, err := Compile(raw)
	if err != nil {
		return nil, warnings, fmt.Errorf("blueprint response unparseable: %w", err)
	}
	for _, w := range warnings {
		g.log.Warn(ctx, "blueprint compile warning", zap.String("warning", w))
	}

	if err := bp.Validate(); err != nil {
		return nil, warnings, fmt.Errorf("blueprint failed validation: %w", err)
	}

	g.log.Info(ctx, "blueprint compiled",
		zap.String("title", bp.Title),
		zap.Int("nodes", len(bp.Nodes)),
		zap.Int("clusters", len(bp.Clusters)),
		zap.Int("relationships", len(bp.Relationships)))

	return bp, warnings, nil
}

// isServerless reports whether a description reads as a serverless
// architecture.
func isServerless(description string) bool {
	lower := strings.ToLower(description)
	hits := 0
	for _, kw := range serverlessKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return hits >= 3
}
