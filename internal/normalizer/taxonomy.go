package normalizer

// DefaultFallback is the sentinel category used when no raw topic is canonical.
const DefaultFallback = "Strategy and Innovation"

// defaultTaxonomy is the Working Knowledge topic vocabulary accepted by the
// destination's category field.
var defaultTaxonomy = []string{
	"Accounting",
	"Advertising",
	"Asset Management",
	"Balanced Scorecard",
	"Banks and Banking",
	"Behavioral Finance",
	"Borrowing and Debt",
	"Brands and Branding",
	"Business and Government Relations",
	"Business Cycles",
	"Business Education",
	"Business History",
	"Business Model",
	"Business or Company Management",
	"Business Startups",
	"Business Strategy",
	"Capital Markets",
	"Career and Workplace",
	"Change Management",
	"Communication",
	"Communication Strategy",
	"Compensation and Benefits",
	"Competency and Skills",
	"Competition",
	"Competitive Advantage",
	"Competitive Strategy",
	"Consumer Behavior",
	"Contracts",
	"Corporate Finance",
	"Corporate Governance",
	"Corporate Social Responsibility and Impact",
	"Corporate Strategy",
	"Cost Management",
	"COVID-19",
	"Creativity",
	"Crime and Corruption",
	"Crisis Management",
	"Customer Relationship Management",
	"Customer Satisfaction",
	"Data and Technology",
	"Decision Making",
	"Demand and Consumers",
	"Design",
	"Developing Countries and Economies",
	"Development Economics",
	"Disruption",
	"Disruptive Innovation",
	"Distribution",
	"Distribution Channels",
	"Diversity",
	"Diversity and Inclusion",
	"Economic Growth",
	"Economic Systems",
	"Economics",
	"Economics and Global Commerce",
	"Emerging Markets",
	"Emotions",
	"Employee Relationship Management",
	"Employees",
	"Employment",
	"Entrepreneurship",
	"Environmental Accounting",
	"Environmental Sustainability",
	"Equality and Inequality",
	"Ethics",
	"Executive Compensation",
	"Failure",
	"Family Business",
	"Finance",
	"Finance and Investing",
	"Financial Crisis",
	"Financial Instruments",
	"Financial Markets",
	"Financing and Loans",
	"Forecasting and Prediction",
	"Foreign Direct Investment",
	"Game Theory",
	"Gender",
	"Geopolitical Units",
	"Giving and Philanthropy",
	"Global Strategy",
	"Globalization",
	"Going Public",
	"Goodwill Accounting",
	"Governance",
	"Government and Politics",
	"Groups and Teams",
	"Growth and Development Strategy",
	"Happiness",
	"Health",
	"History",
	"Human Capital",
	"Human Resources",
	"Immigration",
	"Inflation and Deflation",
	"Information Management",
	"Information Technology",
	"Infrastructure",
	"Innovation and Invention",
	"Innovation Strategy",
	"Insolvency and Bankruptcy",
	"Intellectual Property",
	"Internet",
	"Interpersonal Communication",
	"Investment",
	"Investment Banking",
	"Investment Portfolio",
	"Jobs and Positions",
	"Knowledge",
	"Knowledge Management",
	"Labor",
	"Law",
	"Leadership",
	"Leadership Development",
	"Leadership Style",
	"Leading Change",
	"Leveraged Buyouts",
	"Logistics",
	"Luxury",
	"Macroeconomics",
	"Management",
	"Management Analysis, Tools, and Techniques",
	"Management Practices and Processes",
	"Management Skills",
	"Management Style",
	"Management Teams",
	"Managing the Business",
	"Marketing",
	"Marketing and Consumers",
	"Marketing Communications",
	"Marketing Strategy",
	"Markets",
	"Mergers and Acquisitions",
	"Microeconomics",
	"Monopoly",
	"Motivation and Incentives",
	"National Security",
	"Natural Environment",
	"Negotiation",
	"Negotiation and Decision Making",
	"Nonprofit Organizations",
	"Online Advertising",
	"Operations",
	"Organizational Change and Adaptation",
	"Organizational Culture",
	"Organizational Design",
	"Organizational Structure",
	"Organizations",
	"Ownership",
	"Patents",
	"Perception",
	"Performance",
	"Performance Evaluation",
	"Performance Improvement",
	"Performance Productivity",
	"Personal Characteristics",
	"Personal Development and Career",
	"Personal Finance",
	"Planning",
	"Policy",
	"Political Elections",
	"Power and Influence",
	"Prejudice and Bias",
	"Price",
	"Private Equity",
	"Problems and Challenges",
	"Product",
	"Product Design",
	"Product Development",
	"Product Marketing",
	"Profit",
	"Project Finance",
	"Psychology and Behavior",
	"Race",
	"Recruitment",
	"Regulation and Compliance",
	"Relationships",
	"Research",
	"Research and Development",
	"Retention",
	"Risk Management",
	"Sales",
	"Saving",
	"Science",
	"Selection and Staffing",
	"Service Delivery",
	"Service Operations",
	"Small Business",
	"Social Enterprise",
	"Social Entrepreneurship",
	"Social Issues",
	"Social Marketing",
	"Social Psychology",
	"Social Responsibility and Sustainability",
	"Society",
	"Strategy",
	"Strategy and Innovation",
	"Success",
	"Supply Chain",
	"Supply Chain Management",
	"SWOT Analysis",
	"Talent and Talent Management",
	"Taxation",
	"Technological Innovation",
	"Technology Adoption",
	"Time Management",
	"Trade",
	"Training",
	"Trust",
	"Urban Development",
	"Values and Beliefs",
	"Venture Capital",
	"Voting",
	"Wages",
	"Wealth and Poverty",
	"Weather and Climate Change",
	"Work-Life Balance",
	"Working Conditions",
}
