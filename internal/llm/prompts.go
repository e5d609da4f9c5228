package llm

const analysisPrompt = `You are a personality analysis engine. Analyze the following assessment answers and produce a complete personality profile.

Produce:
- traits: 5-8 personality traits, each with:
  - name: trait name (e.g., "Openness", "Conscientiousness")
  - score: 0-100
  - description: 1-2 sentence summary
  - strengths, challenges, growthSuggestions: short string lists
- intelligence: {type, description, strengths, learningStyle}
  - learningStyle: one of "Visual", "Auditory", "Kinesthetic", "Reading/Writing"
- intelligenceScore: 0-100
- emotionalIntelligenceScore: 0-100
- cognitiveStyle: {primary, secondary, description}
- valueSystem: {coreValues, description}
- relationshipPatterns: {strengths, challenges, description}
- motivators, inhibitors, weaknesses, growthAreas, careerSuggestions, learningPathways: string lists

Scores are absolute on a 0-100 scale. Never express them as fractions.

Respond ONLY with a JSON object using exactly the field names above. No markdown, no explanation.

Assessment answers:
%s`
