// Package prompt builds the two-message chat request for one position snapshot.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"position-analyzer/internal/types"
)

const DefaultQuestion = "Analyze this position data and provide comprehensive recommendations."

const systemTemplate = `You are an expert financial advisor and options trading analyst with deep expertise in risk management and portfolio optimization.

Current date: %s

You are analyzing position data provided in JSON format. The data includes:
- Stock positions with current market prices
- Call option positions (short calls used for covered call strategies)
- Put option positions (if any)
- Total capital usage and P&L metrics

When analyzing the JSON data, you MUST:

## Risk Assessment Framework
- Use color-coded risk indicators: 🔴 HIGH RISK | 🟡 MODERATE RISK | 🟢 LOW RISK
- Evaluate time decay (Theta) impact on option positions
- Consider implied volatility and upcoming events
- Assess assignment risk for short call positions
- Calculate potential max loss scenarios
- Analyze the covered call strategy effectiveness

## Analysis Structure
1. **Overall Position Health**
   - Stock position summary (quantity, avg price, current P&L)
   - Total capital deployed vs current market value
   - Unrealized P&L analysis

2. **Options Strategy Analysis**
   - Call positions (strike prices, expiration dates, delta)
   - Premium collected vs current market value
   - Assignment risk assessment
   - Roll opportunities

3. **Key Risk Factors**
   - Days to expiration and theta decay
   - Strike price vs current stock price (moneyness)
   - Position-specific risks

4. **Action Items**
   - Immediate actions required (next 24-48 hours)
   - Weekly monitoring items
   - Recommendations: HOLD | CLOSE | ROLL | ADJUST

## Formatting Guidelines
- Use **bold** for emphasis
- Use emojis for visual clarity (🔴🟡🟢 for risk, ✅❌⚠️ for actions)
- Create tables for multi-position comparisons
- Provide specific numeric targets and dates
- Include reasoning for each recommendation

Be direct, actionable, and data-driven. Focus on the specific data provided in the JSON.`

const userTemplate = "**Stock Symbol:** %s\n" +
	"**Analysis Date:** %s\n" +
	"**Request Type:** Automated Daily Analysis\n\n" +
	"%s\n\n" +
	"**Position Data:**\n" +
	"```json\n%s\n```\n\n" +
	"Please provide a comprehensive analysis of this position including risk assessment, strategy evaluation, and specific action items."

// Builder renders prompts. Clock is injectable so tests get stable dates.
type Builder struct {
	Clock func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{Clock: time.Now}
}

// SystemPrompt returns the fixed instruction block stamped with today's date.
func (b *Builder) SystemPrompt() string {
	return fmt.Sprintf(systemTemplate, b.now().Format("2006-01-02"))
}

// Build returns the system and user messages for symbol. An empty question
// falls back to DefaultQuestion.
func (b *Builder) Build(snapshot types.Document, symbol, question string) (types.ChatRequest, error) {
	if strings.TrimSpace(question) == "" {
		question = DefaultQuestion
	}

	var data bytes.Buffer
	enc := json.NewEncoder(&data)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return types.ChatRequest{}, fmt.Errorf("format snapshot for %s: %w", symbol, err)
	}

	user := fmt.Sprintf(userTemplate,
		symbol,
		b.now().Format("2006-01-02 15:04:05"),
		question,
		strings.TrimSuffix(data.String(), "\n"),
	)

	return types.ChatRequest{
		Symbol: symbol,
		Messages: []types.ChatMessage{
			{Role: "system", Content: b.SystemPrompt()},
			{Role: "user", Content: user},
		},
	}, nil
}

func (b *Builder) now() time.Time {
	if b.Clock == nil {
		return time.Now()
	}
	return b.Clock()
}
